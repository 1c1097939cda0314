package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 14
	MinPasswordLen = 8
	MaxPasswordLen = 128

	// TemporaryPasswordLen is the length of admin-issued reset passwords
	TemporaryPasswordLen = 16
)

// PasswordValidationError lists the failed rules. Error() stays generic;
// Problems is for logs only.
type PasswordValidationError struct {
	Problems []string
}

func (e *PasswordValidationError) Error() string {
	return "invalid password"
}

var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range []string{
		"password", "password1", "password123", "password123!", "passw0rd",
		"12345678", "123456789", "qwerty123", "letmein1", "welcome1",
		"admin123", "iloveyou", "trustno1", "sunshine", "football",
		"changeme", "riskgate",
	} {
		commonPasswords[p] = struct{}{}
	}
}

type charClasses struct {
	upper, lower, digit, special bool
}

func classify(password string) charClasses {
	var c charClasses
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r):
			c.digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			c.special = true
		}
	}
	return c
}

// ValidatePassword checks length, the four character classes and the
// common-password list.
func ValidatePassword(password string) error {
	var problems []string
	if n := len(password); n < MinPasswordLen || n > MaxPasswordLen {
		problems = append(problems, fmt.Sprintf("length must be %d-%d", MinPasswordLen, MaxPasswordLen))
	}

	c := classify(password)
	for _, rule := range []struct {
		ok   bool
		name string
	}{
		{c.upper, "uppercase letter"},
		{c.lower, "lowercase letter"},
		{c.digit, "digit"},
		{c.special, "special character"},
	} {
		if !rule.ok {
			problems = append(problems, "missing "+rule.name)
		}
	}

	if _, common := commonPasswords[strings.ToLower(password)]; common {
		problems = append(problems, "too common")
	}

	if len(problems) > 0 {
		return &PasswordValidationError{Problems: problems}
	}
	return nil
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// Character classes drawn by GenerateTemporaryPassword. Look-alike
// characters are left out since the password is read off a screen.
var temporaryPasswordClasses = []string{
	"ABCDEFGHJKLMNPQRSTUVWXYZ",
	"abcdefghijkmnopqrstuvwxyz",
	"23456789",
	"!@#$%^&*-_=+",
}

// GenerateTemporaryPassword returns a random password that satisfies
// ValidatePassword, with one character from every class and the rest drawn
// from all of them.
func GenerateTemporaryPassword() (string, error) {
	all := strings.Join(temporaryPasswordClasses, "")
	out := make([]byte, 0, TemporaryPasswordLen)
	for _, class := range temporaryPasswordClasses {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < TemporaryPasswordLen {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates so the class order is not fixed.
	for i := len(out) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func randomChar(set string) (byte, error) {
	i, err := randomIndex(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate password: %w", err)
	}
	return int(v.Int64()), nil
}
