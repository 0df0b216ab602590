package chapter

import (
	"fmt"
	"strings"
)

// ffmetadataHeader is required at the top of every ffmpeg metadata file.
const ffmetadataHeader = ";FFMETADATA1\n"

// FFmpegMetadata renders a full ffmpeg metadata file for the chapter list.
// Each chapter's END is the next chapter's start; the last chapter reuses its
// own start, matching how players treat a trailing chapter marker.
func FFmpegMetadata(chapters []Chapter) string {
	var b strings.Builder
	b.WriteString(ffmetadataHeader)

	for i, c := range chapters {
		end := c.Timestamp
		if i+1 < len(chapters) {
			end = chapters[i+1].Timestamp
		}
		b.WriteString(metadataBlock(c, end))
	}

	return b.String()
}

// metadataBlock renders one [CHAPTER] entry with millisecond timebase.
func metadataBlock(c Chapter, end float64) string {
	startMS := int64(c.Timestamp * 1000)
	endMS := int64(end * 1000)
	return fmt.Sprintf("[CHAPTER]\nTIMEBASE=1/1000\nSTART=%d\nEND=%d\ntitle=%s\n", startMS, endMS, escapeMetadataValue(c.Title))
}

// escapeMetadataValue escapes the characters the ffmetadata format treats
// specially in values.
func escapeMetadataValue(value string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		"=", `\=`,
		";", `\;`,
		"#", `\#`,
		"\n", `\`+"\n",
	)
	return replacer.Replace(value)
}
