package clients

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// RemoteSigner delegates signing to the wallet/keystore collaborator over
// HTTP. The engine holds only the account address; private key material never
// crosses this boundary.
type RemoteSigner struct {
	endpoint string
	address  string
	client   *http.Client
}

// NewRemoteSigner creates a signing handle for the given account backed by
// the wallet service at endpoint.
func NewRemoteSigner(endpoint, address string) *RemoteSigner {
	return &RemoteSigner{
		endpoint: endpoint,
		address:  address,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Address returns the SS58 address the signer signs for.
func (s *RemoteSigner) Address() string { return s.address }

type signRequest struct {
	Address string `json:"address"`
	Payload string `json:"payload"`
}

type signResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error"`
}

// Sign asks the wallet service to sign the payload with the account's key.
func (s *RemoteSigner) Sign(payload []byte) ([]byte, error) {
	body, err := json.Marshal(signRequest{
		Address: s.address,
		Payload: hex.EncodeToString(payload),
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal sign request")
	}

	resp, err := s.client.Post(s.endpoint+"/sign", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "wallet transport")
	}
	defer resp.Body.Close()

	var decoded signResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decode sign response")
	}
	if decoded.Error != "" {
		return nil, errors.Errorf("wallet refused to sign: %s", decoded.Error)
	}
	return hex.DecodeString(decoded.Signature)
}
