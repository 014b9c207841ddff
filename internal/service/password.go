package service

import (
	"fmt"
	"strings"
	"unicode"
)

const DefaultPasswordMinLength = 8

// commonPasswords is a short list of passwords rejected outright.
var commonPasswords = map[string]struct{}{
	"123456": {}, "123456789": {}, "12345678": {}, "1234567890": {}, "qwerty": {},
	"qwerty123": {}, "qwertyuiop": {}, "password": {}, "password1": {}, "password123": {},
	"passw0rd": {}, "iloveyou": {}, "111111": {}, "000000": {}, "abc123": {},
	"abcd1234": {}, "1q2w3e4r": {}, "letmein": {}, "welcome": {}, "welcome1": {},
	"monkey": {}, "dragon": {}, "football": {}, "baseball": {}, "sunshine": {},
	"princess": {}, "admin": {}, "admin123": {}, "login": {}, "master": {},
	"superman": {}, "trustno1": {}, "changeme": {}, "secret": {}, "starwars": {},
	"whatever": {}, "shadow": {}, "michael": {}, "jennifer": {}, "zaq12wsx": {},
}

// PasswordPolicy holds the rules a new password must satisfy.
type PasswordPolicy struct {
	MinLength int
}

// Attribute is a piece of user data a password must not resemble.
type Attribute struct {
	Name  string
	Value string
}

// Check returns every rule the password violates, in a stable order.
func (p PasswordPolicy) Check(password string, attrs ...Attribute) []string {
	minLength := p.MinLength
	if minLength <= 0 {
		minLength = DefaultPasswordMinLength
	}

	var problems []string

	for _, attr := range attrs {
		if similar(password, attr.Value) {
			problems = append(problems, fmt.Sprintf("The password is too similar to the %s.", attr.Name))
			break
		}
	}

	if len([]rune(password)) < minLength {
		problems = append(problems, fmt.Sprintf("This password is too short. It must contain at least %d characters.", minLength))
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		problems = append(problems, "This password is too common.")
	}

	if isNumeric(password) {
		problems = append(problems, "This password is entirely numeric.")
	}

	return problems
}

func similar(password string, value string) bool {
	p := strings.ToLower(password)
	v := strings.ToLower(strings.TrimSpace(value))
	if len(v) < 3 || p == "" {
		return false
	}
	return strings.Contains(p, v) || strings.Contains(v, p)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
