package log

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level 日志级别
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu       sync.Mutex
	minLevel = LevelInfo

	debugTag = color.New(color.FgCyan).Sprint("DEBUG")
	infoTag  = color.New(color.FgGreen).Sprint("INFO ")
	warnTag  = color.New(color.FgYellow).Sprint("WARN ")
	errorTag = color.New(color.FgRed).Sprint("ERROR")
	fatalTag = color.New(color.FgRed, color.Bold).Sprint("FATAL")
)

func init() {
	// 通过环境变量 LOG_LEVEL 控制日志级别
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		minLevel = LevelDebug
	case "warn":
		minLevel = LevelWarn
	case "error":
		minLevel = LevelError
	}
}

// SetLevel 设置最低输出级别
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = level
}

func output(level Level, tag string, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level < minLevel {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(os.Stderr, "%s [%s] %s\n", timestamp, tag, fmt.Sprintf(format, args...))
}

// Debug 输出调试日志
func Debug(format string, args ...interface{}) {
	output(LevelDebug, debugTag, format, args...)
}

// Info 输出普通日志
func Info(format string, args ...interface{}) {
	output(LevelInfo, infoTag, format, args...)
}

// Warn 输出警告日志
func Warn(format string, args ...interface{}) {
	output(LevelWarn, warnTag, format, args...)
}

// Error 输出错误日志
func Error(format string, args ...interface{}) {
	output(LevelError, errorTag, format, args...)
}

// Fatal 输出致命错误日志并退出进程
func Fatal(format string, args ...interface{}) {
	output(LevelFatal, fatalTag, format, args...)
	os.Exit(1)
}
