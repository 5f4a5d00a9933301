package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var zapLogLevelMapping = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"fatal": zapcore.FatalLevel,
}

type zapLogger struct {
	cfg    *LoggerConfig
	logger *zap.SugaredLogger
	nop    bool
	once   sync.Once
}

func newZapLogger(cfg *LoggerConfig) *zapLogger {
	return &zapLogger{cfg: cfg}
}

func (l *zapLogger) getLogLevel() zapcore.Level {
	level, exists := zapLogLevelMapping[l.cfg.Level]
	if !exists {
		return zapcore.DebugLevel
	}
	return level
}

func (l *zapLogger) Init() {
	l.once.Do(func() {
		if l.nop {
			l.logger = zap.NewNop().Sugar()
			return
		}

		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		var enc zapcore.Encoder
		if l.cfg.Encoding == "console" {
			enc = zapcore.NewConsoleEncoder(encCfg)
		} else {
			enc = zapcore.NewJSONEncoder(encCfg)
		}

		core := zapcore.NewCore(enc, zapcore.AddSync(output(l.cfg)), l.getLogLevel())

		logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)).Sugar()
		l.logger = logger.With(string(AppName), "convoy", string(LoggerName), "Zaplog")
	})
}

func (l *zapLogger) withCategory(cat Category, sub SubCategory, extra map[ExtraKey]any) []any {
	params := logParamsToZapParams(extra)
	return append(params, "Category", string(cat), "SubCategory", string(sub))
}

func (l *zapLogger) Debug(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.Init()
	l.logger.Debugw(msg, l.withCategory(cat, sub, extra)...)
}

func (l *zapLogger) Debugf(template string, args ...any) {
	l.Init()
	l.logger.Debugf(template, args...)
}

func (l *zapLogger) Info(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.Init()
	l.logger.Infow(msg, l.withCategory(cat, sub, extra)...)
}

func (l *zapLogger) Infof(template string, args ...any) {
	l.Init()
	l.logger.Infof(template, args...)
}

func (l *zapLogger) Warn(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.Init()
	l.logger.Warnw(msg, l.withCategory(cat, sub, extra)...)
}

func (l *zapLogger) Warnf(template string, args ...any) {
	l.Init()
	l.logger.Warnf(template, args...)
}

func (l *zapLogger) Error(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.Init()
	l.logger.Errorw(msg, l.withCategory(cat, sub, extra)...)
}

func (l *zapLogger) Errorf(template string, args ...any) {
	l.Init()
	l.logger.Errorf(template, args...)
}

func (l *zapLogger) Fatal(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.Init()
	l.logger.Fatalw(msg, l.withCategory(cat, sub, extra)...)
}

func (l *zapLogger) Fatalf(template string, args ...any) {
	l.Init()
	l.logger.Fatalf(template, args...)
}

func (l *zapLogger) Sync() error {
	l.Init()
	return l.logger.Sync()
}
