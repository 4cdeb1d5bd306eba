package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxRecordingBytes caps the audio download; recordings past this size are
// rejected rather than buffered unbounded.
const maxRecordingBytes = 64 << 20

// AudioFetcher downloads call recordings from the provider with basic auth
// built from the account SID and auth token. An explicit timeout keeps a hung
// provider from wedging the transcription worker.
type AudioFetcher struct {
	httpClient *http.Client
}

func NewAudioFetcher(client *http.Client) *AudioFetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &AudioFetcher{httpClient: client}
}

// Fetch retrieves the WAV rendition of a recording. Twilio serves the format
// chosen by the URL suffix.
func (f *AudioFetcher) Fetch(ctx context.Context, recordingURL, accountSID, authToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL+".wav", nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(accountSID, authToken)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telephony: fetch recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telephony: fetch recording: status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordingBytes))
	if err != nil {
		return nil, fmt.Errorf("telephony: read recording: %w", err)
	}
	return audio, nil
}
