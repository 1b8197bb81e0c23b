package lnurl

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/mail"
	"unicode/utf8"

	"github.com/btcsuite/btcd/btcec"
	"github.com/pkg/errors"
)

// PayerNameMaxLength bounds the display name a payer may attach.
const PayerNameMaxLength = 64

// PayerDataField declares that a payer data field is accepted, and whether it
// must be supplied.
type PayerDataField struct {
	Mandatory bool `json:"mandatory"`
}

// PayerAuthField declares that the payer may prove control of a linking key
// by signing K1.
type PayerAuthField struct {
	Mandatory bool   `json:"mandatory"`
	K1        string `json:"k1"`
}

// PayerDataSchema is the LUD-18 payerData object of a payRequest. A nil field
// means the service does not accept it.
type PayerDataSchema struct {
	Name       *PayerDataField `json:"name,omitempty"`
	Pubkey     *PayerDataField `json:"pubkey,omitempty"`
	Identifier *PayerDataField `json:"identifier,omitempty"`
	Email      *PayerDataField `json:"email,omitempty"`
	Auth       *PayerAuthField `json:"auth,omitempty"`
}

// HasMandatory reports whether at least one field must be supplied.
func (s *PayerDataSchema) HasMandatory() bool {
	if s == nil {
		return false
	}

	for _, f := range []*PayerDataField{s.Name, s.Pubkey, s.Identifier, s.Email} {
		if f != nil && f.Mandatory {
			return true
		}
	}

	return s.Auth != nil && s.Auth.Mandatory
}

type PayerAuth struct {
	Key string `json:"key"`
	K1  string `json:"k1"`
	Sig string `json:"sig"`
}

// PayerData is the payerdata callback parameter after schema validation.
// Fields the schema does not declare are always left empty.
type PayerData struct {
	Name       string     `json:"name,omitempty"`
	Pubkey     string     `json:"pubkey,omitempty"`
	Identifier string     `json:"identifier,omitempty"`
	Email      string     `json:"email,omitempty"`
	Auth       *PayerAuth `json:"auth,omitempty"`
}

// ParsePayerData decodes raw as JSON and checks it against schema.
func ParsePayerData(raw string, schema *PayerDataSchema) (*PayerData, error) {
	if schema == nil {
		return nil, errors.New("payer data is not accepted")
	}

	var data PayerData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, errors.New("payer data is not valid json")
	}

	res := &PayerData{}

	name, err := checkField("name", data.Name, schema.Name)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(name) > PayerNameMaxLength {
		return nil, fmt.Errorf("payer name is longer than %d characters",
			PayerNameMaxLength)
	}
	res.Name = name

	pubkey, err := checkField("pubkey", data.Pubkey, schema.Pubkey)
	if err != nil {
		return nil, err
	}
	if pubkey != "" {
		if _, err := parsePubKey(pubkey); err != nil {
			return nil, errors.Wrap(err, "invalid payer pubkey")
		}
	}
	res.Pubkey = pubkey

	res.Identifier, err = checkField(
		"identifier", data.Identifier, schema.Identifier,
	)
	if err != nil {
		return nil, err
	}

	email, err := checkField("email", data.Email, schema.Email)
	if err != nil {
		return nil, err
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, errors.New("invalid payer email")
		}
	}
	res.Email = email

	if schema.Auth != nil {
		switch {
		case data.Auth != nil:
			if err := verifyAuth(data.Auth, schema.Auth.K1); err != nil {
				return nil, err
			}
			res.Auth = data.Auth

		case schema.Auth.Mandatory:
			return nil, errors.New("missing mandatory payer data " +
				"field 'auth'")
		}
	}

	return res, nil
}

func checkField(name, value string, decl *PayerDataField) (string, error) {
	switch {
	case decl == nil:
		return "", nil

	case decl.Mandatory && value == "":
		return "", fmt.Errorf("missing mandatory payer data field "+
			"'%s'", name)
	}

	return value, nil
}

func parsePubKey(key string) (*btcec.PublicKey, error) {
	b, err := hex.DecodeString(key)
	if err != nil {
		return nil, err
	}

	return btcec.ParsePubKey(b, btcec.S256())
}

// verifyAuth checks a LUD-04 style signature by auth.Key over k1.
func verifyAuth(auth *PayerAuth, k1 string) error {
	if auth.K1 != k1 {
		return errors.New("payer auth k1 does not match")
	}

	pub, err := parsePubKey(auth.Key)
	if err != nil {
		return errors.Wrap(err, "invalid payer auth key")
	}

	k1Bytes, err := hex.DecodeString(auth.K1)
	if err != nil {
		return errors.Wrap(err, "invalid payer auth k1")
	}

	sigBytes, err := hex.DecodeString(auth.Sig)
	if err != nil {
		return errors.Wrap(err, "invalid payer auth sig")
	}

	sig, err := btcec.ParseDERSignature(sigBytes, btcec.S256())
	if err != nil {
		return errors.Wrap(err, "invalid payer auth sig")
	}

	if !sig.Verify(k1Bytes, pub) {
		return errors.New("payer auth signature does not verify")
	}

	return nil
}
