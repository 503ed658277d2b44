package security

import "golang.org/x/crypto/bcrypt"

// Work factor for admin credential hashes.
const bcryptCost = 12

// HashPassword produces the bcrypt hash stored on an admin account.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches a stored admin
// credential hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
