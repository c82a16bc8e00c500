package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// ytdlpRunner 基于yt-dlp的下载执行器
type ytdlpRunner struct {
	dir string
}

func newYtdlpRunner(dir string) *ytdlpRunner {
	return &ytdlpRunner{dir: dir}
}

// Run 通过指定代理执行一次下载，返回产物信息
func (r *ytdlpRunner) Run(ctx context.Context, url, proxyURL string, audioOnly bool, progress func(percent int)) (*MediaResult, error) {
	dl := ytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		NoPlaylist().
		Output(filepath.Join(r.dir, "%(title)s [%(id)s].%(ext)s"))

	if audioOnly {
		dl = dl.ExtractAudio().AudioFormat("mp3")
	}
	if proxyURL != "" {
		dl = dl.Proxy(proxyURL)
	}

	dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
		if update.TotalBytes > 0 && progress != nil {
			percent := float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
			progress(int(percent))
		}
	})

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, err
	}

	out := &MediaResult{}
	if result != nil {
		info, infoErr := result.GetExtractedInfo()
		if infoErr == nil && len(info) > 0 {
			entry := info[0]
			if entry.Title != nil {
				out.Title = *entry.Title
			}
			if entry.Duration != nil {
				out.Duration = formatDuration(int(*entry.Duration))
			}
			if entry.Filename != nil {
				out.FilePath = *entry.Filename
				out.FileName = filepath.Base(*entry.Filename)
				if st, statErr := os.Stat(out.FilePath); statErr == nil {
					out.FileSize = st.Size()
				}
			}
		}
	}
	return out, nil
}

// formatDuration 将秒数格式化为 HH:MM:SS 或 MM:SS
func formatDuration(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
