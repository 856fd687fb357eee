package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Sign returns the lowercase hex HMAC-SHA256 of message keyed by secret.
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

type param struct {
	key   string
	value string
}

// Params is a query string that remembers insertion order.
// The exchange verifies the signature against the exact bytes sent, so Encode
// must never sort the way url.Values does.
type Params struct {
	list []param
}

func NewParams() *Params {
	return &Params{}
}

// Set appends key=value. Setting an existing key replaces its value in place.
func (p *Params) Set(key, value string) *Params {
	for i := range p.list {
		if p.list[i].key == key {
			p.list[i].value = value
			return p
		}
	}
	p.list = append(p.list, param{key: key, value: value})
	return p
}

// SetIf appends the pair only when value is not empty.
func (p *Params) SetIf(key, value string) *Params {
	if value == "" {
		return p
	}
	return p.Set(key, value)
}

func (p *Params) Get(key string) (string, bool) {
	for _, kv := range p.list {
		if kv.key == key {
			return kv.value, true
		}
	}
	return "", false
}

func (p *Params) Keys() []string {
	keys := make([]string, 0, len(p.list))
	for _, kv := range p.list {
		keys = append(keys, kv.key)
	}
	return keys
}

func (p *Params) Encode() string {
	var sb strings.Builder
	for i, kv := range p.list {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(kv.key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(kv.value))
	}
	return sb.String()
}
