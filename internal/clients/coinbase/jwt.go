package coinbase

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"time"
)

// jwtSigner produces the short-lived ES256 bearer tokens the Advanced Trade
// API expects. Each authenticated request gets a fresh token scoped to its
// method and path.
type jwtSigner struct {
	keyID string
	key   *ecdsa.PrivateKey
}

func newJWTSigner(keyID, pemSecret string) (*jwtSigner, error) {
	block, _ := pem.Decode([]byte(pemSecret))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in secret")
	}

	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		// Newer keys are issued in PKCS#8 form.
		parsed, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if pkcs8Err != nil {
			return nil, fmt.Errorf("unsupported private key format: %w", err)
		}
		ecKey, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not an EC key")
		}
		key = ecKey
	}

	return &jwtSigner{keyID: keyID, key: key}, nil
}

// Sign builds a token for one request, e.g. Sign("GET", "api.coinbase.com",
// "/api/v3/brokerage/accounts").
func (s *jwtSigner) Sign(method, host, path string) (string, error) {
	now := time.Now()

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	header := map[string]interface{}{
		"alg":   "ES256",
		"typ":   "JWT",
		"kid":   s.keyID,
		"nonce": hex.EncodeToString(nonce),
	}
	claims := map[string]interface{}{
		"sub": s.keyID,
		"iss": "cdp",
		"nbf": now.Unix(),
		"exp": now.Add(2 * time.Minute).Unix(),
		"uri": fmt.Sprintf("%s %s%s", method, host, path),
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON)

	digest := sha256.Sum256([]byte(signingInput))
	r, sig, err := ecdsa.Sign(rand.Reader, s.key, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	// JOSE signature format: fixed-width big-endian R || S.
	signature := make([]byte, 64)
	r.FillBytes(signature[:32])
	sig.FillBytes(signature[32:])

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}
