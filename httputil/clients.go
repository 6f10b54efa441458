package httputil

import (
	"net/http"
	"time"
)

type Clients struct {
	Site    *http.Client // deployed-site verification
	Webhook *http.Client // notification webhooks
}

func NewClients() *Clients {
	site := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &Clients{
		Site:    site,
		Webhook: &http.Client{Timeout: 10 * time.Second},
	}
}
