package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordPolicy(t *testing.T) {
	t.Parallel()

	policy := PasswordPolicy{MinLength: 8}
	attrs := []Attribute{{Name: "email address", Value: "jane.doe"}, {Name: "first name", Value: "Jane"}}

	cases := map[string]struct {
		password string
		want     []string
	}{
		"strong":  {password: "violet-Harbor-42"},
		"short":   {password: "x9!kq", want: []string{"This password is too short. It must contain at least 8 characters."}},
		"numeric": {password: "80412395", want: []string{"This password is entirely numeric."}},
		"common":  {password: "password", want: []string{"This password is too common."}},
		"similar": {password: "Jane.Doe2026", want: []string{"The password is too similar to the email address."}},
		"all short rules": {
			password: "12345",
			want: []string{
				"This password is too short. It must contain at least 8 characters.",
				"This password is entirely numeric.",
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, policy.Check(tc.password, attrs...))
		})
	}
}

func TestPasswordPolicyDefaultsMinLength(t *testing.T) {
	t.Parallel()

	problems := PasswordPolicy{}.Check("k2!xv9q")
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "at least 8 characters")
}
