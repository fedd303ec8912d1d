package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Uploader streams a document to the external media host and returns
// its public URL. Kept as an interface so handlers can be tested
// without the network.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (string, error)
}

var ErrNotConfigured = errors.New("document storage is not configured")

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Cloudinary is a thin passthrough over Cloudinary's signed REST upload
// endpoint. It validates nothing about the files themselves; document
// count rules live in the loan-apply flow.
type Cloudinary struct {
	cfg    CloudinaryConfig
	client *http.Client

	// now is swappable in tests so signatures are deterministic.
	now func() time.Time
}

func NewCloudinary(cfg CloudinaryConfig) *Cloudinary {
	return &Cloudinary{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

func (c *Cloudinary) Configured() bool {
	return c.cfg.CloudName != "" && c.cfg.APIKey != "" && c.cfg.APISecret != ""
}

func (c *Cloudinary) uploadURL() string {
	return fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/auto/upload", c.cfg.CloudName)
}

func (c *Cloudinary) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	timestamp := strconv.FormatInt(c.now().UTC().Unix(), 10)

	params := map[string]string{
		"timestamp": timestamp,
	}

	if c.cfg.Folder != "" {
		params["folder"] = c.cfg.Folder
	}

	// Stream the file through a pipe so large documents never buffer
	// fully in memory.
	pr, pw := io.Pipe()

	pipeWriter := multipart.NewWriter(pw)

	go func() {
		err := writeUploadForm(pipeWriter, params, c.cfg.APIKey, SignParams(params, c.cfg.APISecret), filename, content)

		if err != nil {
			pw.CloseWithError(err)
			return
		}

		pw.CloseWithError(pipeWriter.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL(), pr)

	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", pipeWriter.FormDataContentType())

	resp, err := c.client.Do(req)

	if err != nil {
		return "", err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("cloudinary upload failed: status %d: %s", resp.StatusCode, string(msg))
	}

	var parsed struct {
		SecureURL string `json:"secure_url"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}

	if parsed.SecureURL == "" {
		return "", errors.New("cloudinary upload returned no secure_url")
	}

	return parsed.SecureURL, nil
}

func writeUploadForm(mw *multipart.Writer, params map[string]string, apiKey, signature, filename string, content io.Reader) error {
	for k, v := range params {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}

	if err := mw.WriteField("api_key", apiKey); err != nil {
		return err
	}

	if err := mw.WriteField("signature", signature); err != nil {
		return err
	}

	part, err := mw.CreateFormFile("file", filename)

	if err != nil {
		return err
	}

	_, err = io.Copy(part, content)

	return err
}

// SignParams builds Cloudinary's request signature: the sorted
// key=value pairs joined by '&', with the API secret appended, hashed
// with SHA-1.
func SignParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))

	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))

	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	h := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))

	return hex.EncodeToString(h[:])
}
