package httpapi

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amq10717-bit/SkillUp-sub001/internal/upload"
)

// Signer issues short-lived, folder-scoped upload credentials. The
// signature covers exactly the params the client will send to the
// blob store, hex-SHA1 over the sorted query string plus the secret.
type Signer struct {
	CloudName     string
	APIKey        string
	APISecret     string
	DefaultFolder string
}

func (s *Signer) Credential(folder string) upload.Credential {
	if folder == "" {
		folder = s.DefaultFolder
	}
	ts := time.Now().Unix()
	params := map[string]string{
		"timestamp": strconv.FormatInt(ts, 10),
		"folder":    folder,
	}
	return upload.Credential{
		Timestamp: ts,
		Signature: SignParams(params, s.APISecret),
		APIKey:    s.APIKey,
		CloudName: s.CloudName,
		Folder:    folder,
	}
}

// SignParams produces the blob store's request signature: params
// sorted by key, joined as a query string, secret appended, SHA-1
// hex digest.
func SignParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + secret))
	return hex.EncodeToString(sum[:])
}
