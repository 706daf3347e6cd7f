package db

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Scope partitions soft-deletable rows by archival state.
type Scope string

const (
	ScopeActive   Scope = "active"
	ScopeAny      Scope = "any"
	ScopeArchived Scope = "archived"
)

// ParseScope accepts "", "active", "any" and "archived". The empty string is active.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeActive:
		return ScopeActive, nil
	case ScopeAny:
		return ScopeAny, nil
	case ScopeArchived:
		return ScopeArchived, nil
	}
	return "", fmt.Errorf("invalid scope %q", s)
}

// Predicate returns the WHERE fragment selecting rows in scope.
func (s Scope) Predicate() string {
	switch s {
	case ScopeAny:
		return "1=1"
	case ScopeArchived:
		return "deleted_at IS NOT NULL"
	default:
		return "deleted_at IS NULL"
	}
}

// ScopeFromContext reads the listing scope from query parameters.
// "scope" wins; otherwise only_trashed=true selects archived rows and
// include_trashed=true selects every row.
func ScopeFromContext(c echo.Context) (Scope, error) {
	if s := c.QueryParam("scope"); s != "" {
		return ParseScope(s)
	}
	if flag(c.QueryParam("only_trashed")) {
		return ScopeArchived, nil
	}
	if flag(c.QueryParam("include_trashed")) {
		return ScopeAny, nil
	}
	return ScopeActive, nil
}

func flag(v string) bool {
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
