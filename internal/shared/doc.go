// Package shared holds helpers used by tests across packages. See testutil.
package shared
