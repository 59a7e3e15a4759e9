package pkg

import "golang.org/x/crypto/bcrypt"

const passwordHashCost = 12

// HashPassword produces the bcrypt hash expected in APP_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	return BytesToString(hash), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
