package wifi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"pin/internal/kv"
	"pin/internal/perr"
)

const (
	credsNamespace = "pin_wifi"
	keyKey         = "_device_key"
	ssidKey        = "ssid"
	passwordKey    = "password"
	versionKey     = "version"

	credsVersion = byte(1)
	deviceKeyLen = 32
)

// credentialStore persists Credentials under the pin_wifi namespace,
// encrypting the password with AES-GCM under a per-device key generated
// once and stored alongside it (spec §9 Open Question 3: the original
// XOR-plus-compiled-key scheme is explicitly called out as inadequate;
// AES-GCM under a persisted random device key is the platform-appropriate
// replacement available to a software-only implementation without a
// hardware keystore).
type credentialStore struct {
	store kv.Store
}

func newCredentialStore(store kv.Store) *credentialStore {
	return &credentialStore{store: store}
}

func (c *credentialStore) deviceKey() ([]byte, error) {
	key, err := c.store.GetBlob(credsNamespace, keyKey)
	if err == nil && len(key) == deviceKeyLen {
		return key, nil
	}

	key = make([]byte, deviceKeyLen)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, perr.Wrap(perr.StorageFail, "wifi.device_key", "rand", err)
	}
	if err := c.store.SetBlob(credsNamespace, keyKey, key); err != nil {
		return nil, perr.Wrap(perr.StorageFail, "wifi.device_key", "persist", err)
	}
	return key, nil
}

// Save encrypts and persists creds. SSID is stored as plaintext (it is
// not secret); the password is sealed with AES-GCM.
func (c *credentialStore) Save(creds Credentials) error {
	key, err := c.deviceKey()
	if err != nil {
		return err
	}
	sealed, err := seal(key, []byte(creds.Password))
	if err != nil {
		return perr.Wrap(perr.StorageFail, "wifi.creds_save", "seal", err)
	}

	if err := c.store.SetBlob(credsNamespace, ssidKey, []byte(creds.SSID)); err != nil {
		return perr.Wrap(perr.StorageFail, "wifi.creds_save", "ssid", err)
	}
	if err := c.store.SetBlob(credsNamespace, passwordKey, []byte(base64.StdEncoding.EncodeToString(sealed))); err != nil {
		return perr.Wrap(perr.StorageFail, "wifi.creds_save", "password", err)
	}
	if err := c.store.SetBlob(credsNamespace, versionKey, []byte{credsVersion}); err != nil {
		return perr.Wrap(perr.StorageFail, "wifi.creds_save", "version", err)
	}
	return nil
}

// Load returns the saved Credentials, or perr.NotFound if none are saved.
func (c *credentialStore) Load() (Credentials, error) {
	ssidBlob, err := c.store.GetBlob(credsNamespace, ssidKey)
	if err != nil {
		return Credentials{}, err
	}
	pwBlob, err := c.store.GetBlob(credsNamespace, passwordKey)
	if err != nil {
		return Credentials{}, err
	}

	sealed, err := base64.StdEncoding.DecodeString(string(pwBlob))
	if err != nil {
		return Credentials{}, perr.Wrap(perr.IntegrityFail, "wifi.creds_load", "base64", err)
	}

	key, err := c.deviceKey()
	if err != nil {
		return Credentials{}, err
	}
	password, err := open(key, sealed)
	if err != nil {
		return Credentials{}, perr.Wrap(perr.IntegrityFail, "wifi.creds_load", "decrypt", err)
	}

	return Credentials{SSID: string(ssidBlob), Password: string(password)}, nil
}

func (c *credentialStore) Clear() error {
	_ = c.store.Erase(credsNamespace, ssidKey)
	_ = c.store.Erase(credsNamespace, passwordKey)
	return c.store.Erase(credsNamespace, versionKey)
}

func seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, perr.New(perr.IntegrityFail, "wifi.creds_open", "ciphertext too short")
	}
	nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}
