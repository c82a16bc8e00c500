package service

import (
	"net/url"
	"strings"

	"ytdl2api/models"
	"ytdl2api/pkg/errors"
)

// validateDownloadRequest 校验下载请求参数
func validateDownloadRequest(req *models.DownloadRequest) *errors.APIError {
	raw := strings.TrimSpace(req.URL)
	if raw == "" {
		return errors.NewInvalidRequestError("url is required", nil)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.NewInvalidRequestError("invalid url: "+raw, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.NewInvalidRequestError("url scheme must be http or https", nil)
	}

	if parsed.Host == "" {
		return errors.NewInvalidRequestError("url host is required", nil)
	}

	req.URL = raw
	return nil
}
