package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"studio/pkg/zip"
)

// DownloadResult serves the last edited image as an attachment. Results held
// inline as data URLs are decoded and streamed; results the collaborator
// hosts remotely are answered with a redirect.
func (a *App) DownloadResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	snap := sess.Controller.Snapshot()
	if snap.LastResult == nil || snap.LastResult.URL == "" {
		a.localizedError(w, r, http.StatusNotFound, "no_result")
		return
	}

	mime, data, ok := decodeDataURL(snap.LastResult.URL)
	if !ok {
		http.Redirect(w, r, snap.LastResult.URL, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.Controller.DownloadName()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DownloadBundle archives the staged sources together with the edited result
// (when one is held inline) and serves the zip as an attachment.
func (a *App) DownloadBundle(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	staged := sess.Controller.StagedImages()
	snap := sess.Controller.Snapshot()
	if len(staged) == 0 && (snap.LastResult == nil || snap.LastResult.URL == "") {
		a.localizedError(w, r, http.StatusNotFound, "no_result")
		return
	}

	entries := make([]zip.Entry, 0, len(staged)+1)
	for _, img := range staged {
		name := img.Name
		if name == "" {
			name = img.ID
		}
		entries = append(entries, zip.Entry{Name: name, Data: img.Data})
	}
	if snap.LastResult != nil {
		if _, data, ok := decodeDataURL(snap.LastResult.URL); ok {
			entries = append(entries, zip.Entry{Name: sess.Controller.DownloadName(), Data: data})
		}
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.Logger.Error().Err(err).Str("session_id", sess.ID).Msg("bundle archive failed")
		a.localizedError(w, r, http.StatusInternalServerError, "internal")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.ID+"-bundle.zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// decodeDataURL splits a data:<mime>;base64,<payload> URL into its parts.
func decodeDataURL(url string) (string, []byte, bool) {
	if !strings.HasPrefix(url, "data:") {
		return "", nil, false
	}
	rest := strings.TrimPrefix(url, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", nil, false
	}
	mime := strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	return mime, data, true
}
