// Package logger builds slog loggers with per-environment defaults, optional
// rotated file output, and attributes pulled from the request context.
//
//	log, closeLog := logger.New(
//	    logger.WithEnvironment(environment.Production, "imgcompare"),
//	    logger.WithConfig(cfg),
//	    logger.WithContextExtractors(requestid.LogExtractor()),
//	)
//	defer closeLog()
//
// The attribute helpers in attr.go keep key names consistent; the string
// helpers drop themselves when given an empty value.
package logger
