package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a member's plaintext password. Cost comes from
// AUTH_BCRYPT_COST so test environments can run with a cheap factor.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword checks a login attempt against the stored member hash.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
