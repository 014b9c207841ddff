package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const maxUsernameLength = 150

type usernameChecker interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// baseUsername derives the username candidate from an email's local part.
func baseUsername(email string) string {
	local := strings.TrimSpace(email)
	if at := strings.LastIndex(local, "@"); at >= 0 {
		local = local[:at]
	}
	if local == "" {
		local = "user"
	}
	if runes := []rune(local); len(runes) > maxUsernameLength {
		local = string(runes[:maxUsernameLength])
	}
	return local
}

// uniqueUsername returns base if free, otherwise base1, base2, ... picking the
// lowest free suffix.
func uniqueUsername(ctx context.Context, users usernameChecker, base string) (string, error) {
	candidate := base
	for n := 1; ; n++ {
		taken, err := users.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}

		suffix := strconv.Itoa(n)
		trimmed := []rune(base)
		if len(trimmed)+len(suffix) > maxUsernameLength {
			trimmed = trimmed[:maxUsernameLength-len(suffix)]
		}
		candidate = string(trimmed) + suffix
	}
}
