package backend

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// UpdateChecker periodically resolves the latest release redirect and
// reports when a version tag newer than the last seen one appears.
type UpdateChecker struct {
	OnUpdatedVersionFound func()

	versionTagFound  string
	latestReleaseURL string
	appVersionTag    string
	lastCheckedTag   *string
	httpClient       *http.Client
}

func NewUpdateChecker(appVersionTag, latestReleaseURL string, lastCheckedTag *string) UpdateChecker {
	cli := retryablehttp.NewClient()
	cli.RetryMax = 1
	cli.Logger = nil
	cli.HTTPClient.Timeout = 15 * time.Second
	return UpdateChecker{
		appVersionTag:    appVersionTag,
		latestReleaseURL: latestReleaseURL,
		lastCheckedTag:   lastCheckedTag,
		httpClient:       cli.StandardClient(),
	}
}

func (u *UpdateChecker) Start(ctx context.Context, interval time.Duration) {
	go func() {
		u.checkForUpdate(ctx) // check once at startup
		t := time.NewTicker(interval)
		for {
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
				u.checkForUpdate(ctx)
			}
		}
	}()
}

func (u *UpdateChecker) VersionTagFound() string {
	return u.versionTagFound
}

func (u *UpdateChecker) LatestReleaseURL() *url.URL {
	url, _ := url.Parse(u.latestReleaseURL)
	return url
}

func (u *UpdateChecker) checkForUpdate(ctx context.Context) {
	t := u.CheckLatestVersionTag(ctx)
	if t != "" && t != *u.lastCheckedTag {
		u.versionTagFound = t
		if u.OnUpdatedVersionFound != nil {
			u.OnUpdatedVersionFound()
		}
	}
}

// CheckLatestVersionTag follows the latest-release redirect and returns
// the version tag from the final URL, or "" if it could not be resolved.
func (u *UpdateChecker) CheckLatestVersionTag(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.latestReleaseURL, nil)
	if err != nil {
		return ""
	}
	resp, err := u.httpClient.Do(req)
	if err != nil {
		log.Printf("failed to check for newest version: %s", err.Error())
		return ""
	}
	resp.Body.Close()
	url := strings.TrimSuffix(resp.Request.URL.String(), "/")
	idx := strings.LastIndex(url, "/")
	if idx >= len(url)-1 {
		return ""
	}
	return url[idx+1:]
}
