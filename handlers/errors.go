package handlers

import (
	"errors"
	"fmt"

	"embed-bot/database"
	"embed-bot/delivery"
	"embed-bot/downloader"
	"embed-bot/service"
)

// userError renders err for chat users.
func userError(err error) string {
	if fetchErr, ok := downloader.IsFetchError(err); ok {
		return fmt.Sprintf("%s post could not be downloaded (%s)", fetchErr.Integration, fetchErr.Reason)
	}
	switch {
	case errors.Is(err, service.ErrRateLimited):
		return "this server reached its post limit, try again later"
	case errors.Is(err, service.ErrMemberSilenced):
		return "you are silenced on this server"
	case errors.Is(err, service.ErrIntegrationDisabled):
		return "this platform is disabled on this server"
	case errors.Is(err, delivery.ErrTranscodeExhausted):
		return "the media is too large to upload, even after shrinking it"
	case errors.Is(err, service.ErrUnknownIntegration):
		return "unknown platform"
	case errors.Is(err, service.ErrFormatTooLong):
		return fmt.Sprintf("the post format is longer than %d characters", service.MaxPostFormatLength)
	case errors.Is(err, database.ErrServerNotFound):
		return "this server is not set up yet"
	default:
		return err.Error()
	}
}
