// Package report turns rendered HTML into PDF documents through a
// Gotenberg instance.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable means the Gotenberg service could not produce a document.
var ErrUnavailable = errors.New("report: pdf renderer unavailable")

// Page sets the paper layout in inches.
type Page struct {
	Width        float64
	Height       float64
	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64
}

// A4 is the layout used for invoices.
var A4 = Page{Width: 8.27, Height: 11.7, MarginTop: 0.6, MarginBottom: 0.6, MarginLeft: 0.6, MarginRight: 0.6}

// Client wraps interactions with the Gotenberg API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping checks if the remote Gotenberg service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: health status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// RenderHTML converts a complete HTML document into a PDF. Gotenberg
// expects the entry file to be called index.html.
func (c *Client) RenderHTML(ctx context.Context, html []byte, page Page) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(html); err != nil {
		return nil, err
	}
	fields := map[string]float64{
		"paperWidth":   page.Width,
		"paperHeight":  page.Height,
		"marginTop":    page.MarginTop,
		"marginBottom": page.MarginBottom,
		"marginLeft":   page.MarginLeft,
		"marginRight":  page.MarginRight,
	}
	for name, value := range fields {
		if value <= 0 {
			continue
		}
		if err := writer.WriteField(name, fmt.Sprintf("%g", value)); err != nil {
			return nil, err
		}
	}
	if err := writer.WriteField("printBackground", "true"); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: convert status %d", ErrUnavailable, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
