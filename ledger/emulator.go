package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stellar/go/support/log"
	"github.com/xdrpp/stcsign/apdu"
	"github.com/xdrpp/stcsign/stcdetail"
)

// Default per-exchange timeout for the emulator.
const DefaultEmulatorTimeout = 20 * time.Second

// EmulatorTransport sends APDUs to a Speculos or Zemu emulator over
// HTTP.  Used for tests; real devices go through HIDTransport.
type EmulatorTransport struct {
	URL    string
	Client *http.Client
	log    *log.Entry
}

type emulatorRequest struct {
	APDUHex string `json:"apduHex"`
}

type emulatorResponse struct {
	Data  string  `json:"data"`
	Error *string `json:"error"`
}

// NewEmulatorTransport returns a transport posting to
// http://host:port.  logger may be nil.
func NewEmulatorTransport(host string, port uint16,
	logger *log.Entry) *EmulatorTransport {
	if logger == nil {
		logger = log.DefaultLogger
	}
	url := fmt.Sprintf("http://%s:%d", host, port)
	return &EmulatorTransport{
		URL:    url,
		Client: &http.Client{Timeout: DefaultEmulatorTimeout},
		log:    logger.WithFields(log.F{"transport": "emulator", "url": url}),
	}
}

func (t *EmulatorTransport) Exchange(ctx context.Context,
	cmd apdu.Command) (apdu.Answer, error) {
	raw, err := cmd.Encode()
	if err != nil {
		return apdu.Answer{}, err
	}
	body, err := json.Marshal(emulatorRequest{hex.EncodeToString(raw)})
	if err != nil {
		return apdu.Answer{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL,
		bytes.NewReader(body))
	if err != nil {
		return apdu.Answer{}, &ResponseError{URL: t.URL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	t.log.WithField("apdu_in", hex.EncodeToString(raw)).Debug("apdu sent")
	resp, err := t.Client.Do(req)
	if err != nil {
		t.log.WithError(err).Error("emulator request failed")
		return apdu.Answer{}, &ResponseError{URL: t.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := stcdetail.NewHTTPerror(resp)
		t.log.WithField("status", resp.StatusCode).Error("emulator error response")
		return apdu.Answer{}, &ResponseError{URL: t.URL,
			Status: resp.StatusCode, Err: herr}
	}
	var er emulatorResponse
	if err = json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return apdu.Answer{}, &ResponseError{URL: t.URL,
			Status: resp.StatusCode, Err: err}
	}
	if er.Error != nil {
		return apdu.Answer{}, &ResponseError{URL: t.URL,
			Status: resp.StatusCode, Message: *er.Error}
	}
	ans, err := apdu.DecodeHex(er.Data)
	if err != nil {
		return apdu.Answer{}, &ResponseError{URL: t.URL,
			Status: resp.StatusCode, Err: err}
	}
	t.log.WithFields(log.F{
		"apdu_out": hex.EncodeToString(ans.Data),
		"retcode":  ans.ReturnCode,
	}).Debug("apdu received")
	return ans, nil
}
