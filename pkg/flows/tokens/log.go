package tokens

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const serviceName = "TokenService"

// logService wraps Service with logging of every method call
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the token Service.
// It logs method entry and exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// Issue wraps the service method with logging
func (ls *logService) Issue(ctx context.Context, req *IssueRequest) (resp *TransactionResponse, err error) {
	start := time.Now()

	ls.logger.Info("Issue started",
		zap.String("service", serviceName),
		zap.String("method", "Issue"),
		zap.Int("tokens", len(req.Tokens)),
		zap.Strings("observers", req.Observers),
		zap.Bool("confidential", req.Confidential),
	)

	defer func() {
		duration := time.Since(start)
		if err != nil {
			ls.logger.Error("Issue failed",
				zap.String("service", serviceName),
				zap.String("method", "Issue"),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
			return
		}
		ls.logger.Info("Issue completed",
			zap.String("service", serviceName),
			zap.String("method", "Issue"),
			zap.String("tx_id", resp.TxID),
			zap.Int("outputs", len(resp.Outputs)),
			zap.Duration("duration", duration),
		)
	}()

	return ls.svc.Issue(ctx, req)
}

// Move wraps the service method with logging
func (ls *logService) Move(ctx context.Context, req *MoveRequest) (resp *TransactionResponse, err error) {
	start := time.Now()

	ls.logger.Info("Move started",
		zap.String("service", serviceName),
		zap.String("method", "Move"),
		zap.String("token_type", req.TokenType),
		zap.String("linear_id", req.LinearID),
		zap.String("recipient", req.Recipient),
		zap.Bool("confidential", req.Confidential),
	)

	defer func() {
		duration := time.Since(start)
		if err != nil {
			ls.logger.Error("Move failed",
				zap.String("service", serviceName),
				zap.String("method", "Move"),
				zap.String("recipient", req.Recipient),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
			return
		}
		ls.logger.Info("Move completed",
			zap.String("service", serviceName),
			zap.String("method", "Move"),
			zap.String("tx_id", resp.TxID),
			zap.Int("inputs", len(resp.Inputs)),
			zap.Int("outputs", len(resp.Outputs)),
			zap.Duration("duration", duration),
		)
	}()

	return ls.svc.Move(ctx, req)
}

// Recipients wraps the service method with logging
func (ls *logService) Recipients(ctx context.Context, tokenTypeID string) (resp *RecipientsResponse, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			ls.logger.Error("Recipients failed",
				zap.String("service", serviceName),
				zap.String("token_type", tokenTypeID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		ls.logger.Debug("Recipients completed",
			zap.String("service", serviceName),
			zap.String("token_type", tokenTypeID),
			zap.Int("recipients", len(resp.Recipients)),
			zap.Duration("duration", time.Since(start)),
		)
	}()
	return ls.svc.Recipients(ctx, tokenTypeID)
}

// Balance wraps the service method with logging
func (ls *logService) Balance(ctx context.Context, tokenTypeID string) (resp *BalanceResponse, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			ls.logger.Error("Balance failed",
				zap.String("service", serviceName),
				zap.String("token_type", tokenTypeID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		ls.logger.Debug("Balance completed",
			zap.String("service", serviceName),
			zap.String("token_type", tokenTypeID),
			zap.String("amount", resp.Amount.String()),
			zap.Duration("duration", time.Since(start)),
		)
	}()
	return ls.svc.Balance(ctx, tokenTypeID)
}

// Record wraps the service method with logging
func (ls *logService) Record(ctx context.Context, linearID string) (resp *RecordResponse, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			ls.logger.Warn("Record lookup failed",
				zap.String("service", serviceName),
				zap.String("linear_id", linearID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		ls.logger.Debug("Record lookup completed",
			zap.String("service", serviceName),
			zap.String("linear_id", linearID),
			zap.String("tx_id", resp.Ref.TxID),
			zap.Duration("duration", time.Since(start)),
		)
	}()
	return ls.svc.Record(ctx, linearID)
}
