package bot

import (
	"fmt"
	"math"
	"time"
)

const (
	msgDenied         = "⛔ Sorry, you are not allowed to use this bot."
	msgBusy           = "⏳ Your previous request is still being processed. Please wait until it finishes."
	msgNoURL          = "🔗 Please send a valid link (for example https://www.youtube.com/watch?v=...)."
	msgDownloading    = "⏳ Downloading…"
	msgUploading      = "📤 Uploading…"
	msgDeliveryFailed = "could not send the file"

	msgHelp = "Send me a link to a video (YouTube, TikTok, Instagram, X and many more) and I will " +
		"download it and send it back.\n\n" +
		"Several links in one message are processed one after another. " +
		"Large videos are re-downloaded at a lower quality to fit the upload limit."
)

func tooSoonMessage(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("⏳ Please wait %d s before sending another request.", secs)
}

func failureMessage(reason string) string {
	return "❌ " + reason
}

// batchPrefix numbers status messages when a message carries several links.
func batchPrefix(i, n int) string {
	if n <= 1 {
		return ""
	}
	return fmt.Sprintf("[%d/%d] ", i+1, n)
}
