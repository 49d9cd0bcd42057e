// Package logger 提供基于logrus的全局日志实例
// 客户端命令、缓存层和开发服务器共用同一个日志配置
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	// Logger 全局日志实例，Init 只重新配置它，不替换指针
	Logger = logrus.New()

	mu      sync.Mutex
	logFile *os.File
	ginOnce sync.Once
)

func init() {
	_ = Init(nil)
}

// Config 日志配置结构体
type Config struct {
	// Level 日志级别 (debug, info, warn, error, fatal, panic)
	Level string `mapstructure:"level" json:"level"`
	// Format 日志格式 (json, text)
	Format string `mapstructure:"format" json:"format"`
	// Output 输出方式 (console, stderr, file, both)
	Output string `mapstructure:"output" json:"output"`
	// FilePath 日志文件路径
	FilePath string `mapstructure:"file_path" json:"file_path"`
}

// DefaultConfig 返回默认日志配置
// 命令行客户端默认只输出警告以上级别到stderr，避免干扰命令输出
func DefaultConfig() *Config {
	return &Config{
		Level:    "warn",
		Format:   "text",
		Output:   "stderr",
		FilePath: "logs/scijournal.log",
	}
}

// Init 初始化日志系统
// 参数:
//   - config: 日志配置，如果为nil则使用默认配置
//
// 返回值:
//   - error: 初始化错误
func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	mu.Lock()
	defer mu.Unlock()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.WarnLevel
		Logger.Warnf("无效的日志级别 '%s'，使用默认级别 'warn'", config.Level)
	}
	Logger.SetLevel(level)

	switch config.Format {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "text", "":
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		Logger.Warnf("无效的日志格式 '%s'，使用默认格式 'text'", config.Format)
	}

	if err := setupOutput(config); err != nil {
		return err
	}

	ginOnce.Do(setupGinLogger)

	Logger.Debug("日志系统初始化完成")
	return nil
}

// setupOutput 设置日志输出，之前打开的日志文件在切换后关闭
func setupOutput(config *Config) error {
	var (
		out  io.Writer
		file *os.File
		err  error
	)
	switch config.Output {
	case "console":
		out = os.Stdout
	case "stderr", "":
		out = os.Stderr
	case "file":
		if file, err = openLogFile(config.FilePath); err != nil {
			return err
		}
		out = file
	case "both":
		if file, err = openLogFile(config.FilePath); err != nil {
			return err
		}
		out = io.MultiWriter(os.Stderr, file)
	default:
		out = os.Stderr
		defer Logger.Warnf("无效的输出方式 '%s'，使用默认方式 'stderr'", config.Output)
	}

	Logger.SetOutput(out)
	if logFile != nil {
		logFile.Close()
	}
	logFile = file
	return nil
}

// openLogFile 创建日志目录并以追加模式打开日志文件
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// setupGinLogger 将Gin的日志输出桥接到logrus
func setupGinLogger() {
	ginWriter := &GinLogWriter{logger: Logger}
	gin.DefaultWriter = ginWriter
	gin.DefaultErrorWriter = ginWriter
}

// GinLogWriter Gin日志写入器
type GinLogWriter struct {
	logger *logrus.Logger
}

// Write 实现io.Writer接口
func (w *GinLogWriter) Write(p []byte) (n int, err error) {
	w.logger.Info(string(p))
	return len(p), nil
}

// GetLogger 获取日志实例
func GetLogger() *logrus.Logger {
	return Logger
}

// SetOutput 替换日志输出，测试中用于捕获日志
func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

// Debugf 记录格式化调试级别日志
func Debugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

// Info 记录信息级别日志
func Info(args ...interface{}) {
	GetLogger().Info(args...)
}

// Infof 记录格式化信息级别日志
func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

// Warnf 记录格式化警告级别日志
func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

// Errorf 记录格式化错误级别日志
func Errorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// Fatalf 记录格式化致命级别日志并退出程序
func Fatalf(format string, args ...interface{}) {
	GetLogger().Fatalf(format, args...)
}

// WithField 添加字段到日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields 添加多个字段到日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}
