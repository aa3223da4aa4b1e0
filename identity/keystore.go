package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

type keystoreFile struct {
	PublicID   string `json:"public_id"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipher_text"`
}

// SaveKey encrypts a SecretID's raw key material with password and writes it
// to path as JSON, adapted from the encrypted-keystore idiom used elsewhere
// in this lineage for validator keys.
func SaveKey(path, password string, secret SecretID) error {
	es, ok := secret.(ed25519SecretID)
	if !ok {
		return errors.New("identity: SaveKey only supports ed25519 SecretIDs")
	}

	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	key := deriveKey(password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	cipherText := gcm.Seal(nil, nonce, es.rawBytes(), nil)

	ks := keystoreFile{
		PublicID:   es.pub.Hex(),
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		CipherText: hex.EncodeToString(cipherText),
	}
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadKey decrypts the keystore at path using password and returns a
// SecretID.
func LoadKey(path, password string) (SecretID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, err
	}
	salt, err := hex.DecodeString(ks.Salt)
	if err != nil {
		return nil, err
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return nil, err
	}
	cipherText, err := hex.DecodeString(ks.CipherText)
	if err != nil {
		return nil, err
	}

	key := deriveKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	privBytes, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, errors.New("identity: wrong password or corrupted keystore")
	}
	priv := ed25519.PrivateKey(privBytes)
	pub := priv.Public().(ed25519.PublicKey)
	return ed25519SecretID{priv: priv, pub: ed25519PublicID{key: pub}}, nil
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, 210_000, 32, sha256.New)
}
