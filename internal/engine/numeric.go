package engine

import (
	"fmt"
	"regexp"
	"strconv"
)

var integerToken = regexp.MustCompile(`-?\d+`)

// LastInteger returns the last decimal integer token in text. The engine
// echoes array sizes as the final number before its prompt.
func LastInteger(text string) (int, error) {
	tokens := integerToken.FindAllString(text, -1)
	if len(tokens) == 0 {
		return 0, fmt.Errorf("no integer in output %q", truncate(text, 80))
	}
	last := tokens[len(tokens)-1]
	n, err := strconv.Atoi(last)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", last, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
