package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	slug := GenerateSlug("Pizzeria Luigi's Lunch Menu")
	assert.True(t, strings.HasPrefix(slug, "pizzeria-luigi-s-lunch-menu-"))
	assert.Regexp(t, `^[a-z0-9-]+$`, slug)

	// Same name yields distinct slugs
	other := GenerateSlug("Pizzeria Luigi's Lunch Menu")
	assert.NotEqual(t, slug, other)
}

func TestGenerateSlugHandlesEdgeCases(t *testing.T) {
	// Non-ASCII only names still produce a usable slug
	slug := GenerateSlug("日本料理")
	assert.NotEmpty(t, slug)
	assert.Regexp(t, `^[a-z0-9-]+$`, slug)

	// Long names are truncated but stay valid
	long := GenerateSlug(strings.Repeat("very long menu name ", 10))
	assert.LessOrEqual(t, len(long), 70)
	assert.Regexp(t, `^[a-z0-9-]+$`, long)
}

func TestUserPasswordRoundTrip(t *testing.T) {
	user, err := CreateUser("Luigi", "Pizzeria Luigi", "luigi@example.com", "super-secret-pw")
	assert.NoError(t, err)
	assert.True(t, user.CheckPassword("super-secret-pw"))
	assert.False(t, user.CheckPassword("wrong"))
}
