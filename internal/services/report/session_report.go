package report

import (
	"context"
	"fmt"
	"time"

	"github.com/halcyon-games/halcyon-game-backend/internal/database/repository"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sessions"

// Service builds operational reports about accounts and their sessions.
type Service struct {
	userRepo  *repository.UserRepository
	tokenRepo *repository.RefreshTokenRepository
}

func NewService(userRepo *repository.UserRepository, tokenRepo *repository.RefreshTokenRepository) *Service {
	return &Service{userRepo: userRepo, tokenRepo: tokenRepo}
}

// BuildSessionReport produces an xlsx workbook listing every account with
// its active and total refresh-token counts.
func (s *Service) BuildSessionReport(ctx context.Context) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetName)

	headers := []string{"Username", "Email", "Active", "Last Login", "Active Sessions", "Total Sessions"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	row := 2
	page := 1
	const pageSize = 100
	for {
		users, total, err := s.userRepo.GetAllUsers(ctx, page, pageSize, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}

		for i := range users {
			user := &users[i]
			totalTokens, activeTokens, err := s.tokenRepo.CountByUser(ctx, user.ID, now)
			if err != nil {
				return nil, fmt.Errorf("failed to count sessions for user %s: %w", user.ID, err)
			}

			lastLogin := ""
			if user.LastLoginAt != nil {
				lastLogin = user.LastLoginAt.Format(time.RFC3339)
			}

			values := []interface{}{user.Username, user.Email, user.IsActive, lastLogin, activeTokens, totalTokens}
			for col, value := range values {
				cell, err := excelize.CoordinatesToCellName(col+1, row)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(sheetName, cell, value); err != nil {
					return nil, err
				}
			}
			row++
		}

		if int64(page*pageSize) >= total {
			break
		}
		page++
	}

	return f, nil
}
