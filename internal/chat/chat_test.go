// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package chat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/models"
)

func testConfig(uploadURL string) config.ChatConfig {
	return config.ChatConfig{
		BotToken:  "xoxb-test",
		Channel:   "reviews",
		UploadURL: uploadURL,
		Technicians: map[string]string{
			"Mike Jones": "U123456",
		},
	}
}

func testReview() models.Review {
	return models.Review{
		ID:           "google:g1",
		Source:       "google",
		ReviewerName: "Jane Smith",
		Rating:       5,
		ReviewText:   "Fast and friendly.\nWould hire again.",
		TechName:     "Mike Jones",
	}
}

func TestMentionLookupCaseInsensitive(t *testing.T) {
	c := New(testConfig(""))

	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"Mike Jones", "<@U123456>", true},
		{"mike jones", "<@U123456>", true},
		{"  MIKE JONES  ", "<@U123456>", true},
		{"Sara Lee", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := c.Mention(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Mention(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestComposeMessage(t *testing.T) {
	c := New(testConfig(""))
	msg := c.composeMessage(testReview())

	if !strings.HasPrefix(msg, "★★★★★") {
		t.Errorf("message should open with star glyphs: %q", msg)
	}
	if !strings.Contains(msg, "Google") {
		t.Error("platform label missing")
	}
	if !strings.Contains(msg, "Jane Smith") {
		t.Error("reviewer name missing")
	}
	if !strings.Contains(msg, "> Fast and friendly.") || !strings.Contains(msg, "> Would hire again.") {
		t.Errorf("review text should be block-quoted per line: %q", msg)
	}
	if !strings.Contains(msg, "Technician: <@U123456>") {
		t.Errorf("technician mention missing: %q", msg)
	}
}

func TestComposeMessageOmitsUnmappedTechnician(t *testing.T) {
	c := New(testConfig(""))
	r := testReview()
	r.TechName = "Unknown Person"

	if msg := c.composeMessage(r); strings.Contains(msg, "Technician:") {
		t.Errorf("unmapped technician should be omitted: %q", msg)
	}
}

func TestShareUploadsMultipart(t *testing.T) {
	var gotAuth, gotChannel, gotFilename, gotComment string
	var gotFile []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatal(err)
		}
		gotChannel = r.FormValue("channels")
		gotFilename = r.FormValue("filename")
		gotComment = r.FormValue("initial_comment")

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatal(err)
		}
		defer file.Close()
		buf := make([]byte, 16)
		n, _ := file.Read(buf)
		gotFile = buf[:n]

		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	image := []byte{0x89, 0x50, 0x4E, 0x47}
	if err := c.Share(context.Background(), testReview(), image, models.FormatPNG); err != nil {
		t.Fatal(err)
	}

	if gotAuth != "Bearer xoxb-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotChannel != "reviews" {
		t.Errorf("channel = %q", gotChannel)
	}
	if !strings.HasPrefix(gotFilename, "review-jane-smith-") || !strings.HasSuffix(gotFilename, ".png") {
		t.Errorf("filename = %q", gotFilename)
	}
	if !strings.Contains(gotComment, "Jane Smith") {
		t.Errorf("comment = %q", gotComment)
	}
	if string(gotFile) != string(image) {
		t.Errorf("file bytes = %x", gotFile)
	}
}

func TestShareFieldOrderDeterministic(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	if err := c.Share(context.Background(), testReview(), []byte{0x89}, models.FormatPNG); err != nil {
		t.Fatal(err)
	}

	body := string(raw)
	order := []string{
		`name="channels"`,
		`name="initial_comment"`,
		`name="filename"`,
		`name="title"`,
		`name="file"`,
	}
	last := -1
	for _, marker := range order {
		idx := strings.Index(body, marker)
		if idx < 0 {
			t.Fatalf("field %s missing from body", marker)
		}
		if idx < last {
			t.Errorf("field %s out of order", marker)
		}
		last = idx
	}
}

func TestShareJPEGExtension(t *testing.T) {
	var gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(10 << 20)
		gotFilename = r.FormValue("filename")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	if err := c.Share(context.Background(), testReview(), []byte{0xFF, 0xD8}, models.FormatJPEG); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(gotFilename, ".jpg") {
		t.Errorf("filename = %q", gotFilename)
	}
}

func TestShareSurfacesRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	err := c.Share(context.Background(), testReview(), []byte{1}, models.FormatPNG)
	if err == nil {
		t.Fatal("expected error")
	}
	if models.KindOf(err) != models.KindUpstream {
		t.Errorf("kind = %v", models.KindOf(err))
	}
	if !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("err = %v, want remote detail", err)
	}
}

func TestShareUnconfigured(t *testing.T) {
	c := New(config.ChatConfig{})
	err := c.Share(context.Background(), testReview(), []byte{1}, models.FormatPNG)
	if models.KindOf(err) != models.KindBadRequest {
		t.Errorf("kind = %v", models.KindOf(err))
	}
}
