// Package logging builds the service's log/slog logger and carries request-scoped
// loggers through context.
//
//	logger := logging.NewLogger()
//	slog.SetDefault(logger)
//
//	func handle(ctx context.Context) {
//	    logging.WithRequestID(ctx, slog.Default()).Info("processing request")
//	}
package logging
