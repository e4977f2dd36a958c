package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	otpMin            = 100000
	otpSpan           = 900000
	tokenBytes        = 32
	minPasswordLength = 8
)

var validate = validator.New()

const weakPasswordMsg = "Password must be at least 8 characters long and include an uppercase letter, a lowercase letter, a number and a special character"

// generateOTP devuelve un código de 6 dígitos uniforme en [100000, 999999].
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// generateToken devuelve un identificador opaco de 256 bits en hex.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// validateEmail exige una dirección bien formada y sin saltos de línea.
func validateEmail(addr string) error {
	if strings.ContainsAny(addr, "\r\n") || validate.Var(addr, "required,email") != nil {
		return validationErr("Invalid email")
	}
	return nil
}

// validatePassword aplica la política única de registro y reset: al menos 8
// caracteres con minúscula, mayúscula, dígito y un símbolo (cualquier
// carácter que no sea letra, dígito ni espacio).
func validatePassword(pw string) error {
	if len([]rune(pw)) < minPasswordLength {
		return validationErr(weakPasswordMsg)
	}
	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLetter(r), unicode.IsSpace(r):
		default:
			symbol = true
		}
	}
	if !lower || !upper || !digit || !symbol {
		return validationErr(weakPasswordMsg)
	}
	return nil
}
