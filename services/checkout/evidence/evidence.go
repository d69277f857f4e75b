// Package evidence stores proof-of-payment images.
package evidence

import (
	"context"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/pulseras/pulseras-go/services/checkout/model"
)

// DefaultMaxBytes is the size limit used when none is configured.
const DefaultMaxBytes = 5 << 20

const keyPrefix = "screenshots"

// Proof is an uploaded proof-of-payment file.
type Proof struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Store persists proofs and returns the reference kept on the transaction.
type Store interface {
	Put(ctx context.Context, p *Proof) (string, error)
	// Delete removes a proof that ended up unreferenced.
	Delete(ctx context.Context, ref string) error
}

// Validate checks that p is an image no larger than maxBytes.
//
// A declared content type that is not an image is checked against the content itself.
func Validate(p *Proof, maxBytes int64) error {
	if p == nil || len(p.Data) == 0 {
		return model.ErrScreenshotRequired
	}

	if maxBytes > 0 && int64(len(p.Data)) > maxBytes {
		return model.ErrScreenshotTooLarge
	}

	if !isImage(p.ContentType) {
		sniffed := http.DetectContentType(p.Data)
		if !isImage(sniffed) {
			return model.ErrScreenshotNotImage
		}

		p.ContentType = sniffed
	}

	return nil
}

func isImage(ctype string) bool {
	mt, _, err := mime.ParseMediaType(ctype)
	if err != nil {
		return false
	}

	return strings.HasPrefix(mt, "image/")
}

// newKey returns screenshots/YYYY/MM/<uuid><ext> for p.
func newKey(now time.Time, p *Proof) string {
	name := uuid.NewV4().String() + extension(p)

	return path.Join(keyPrefix, now.UTC().Format("2006"), now.UTC().Format("01"), name)
}

func extension(p *Proof) string {
	if ext := strings.ToLower(filepath.Ext(p.Filename)); ext != "" && !strings.ContainsAny(ext, `/\`) {
		return ext
	}

	exts, err := mime.ExtensionsByType(p.ContentType)
	if err != nil || len(exts) == 0 {
		return ""
	}

	return exts[0]
}

type MockStore struct {
	FnPut    func(ctx context.Context, p *Proof) (string, error)
	FnDelete func(ctx context.Context, ref string) error
}

func (s *MockStore) Put(ctx context.Context, p *Proof) (string, error) {
	if s.FnPut == nil {
		return newKey(time.Now(), p), nil
	}

	return s.FnPut(ctx, p)
}

func (s *MockStore) Delete(ctx context.Context, ref string) error {
	if s.FnDelete == nil {
		return nil
	}

	return s.FnDelete(ctx, ref)
}
