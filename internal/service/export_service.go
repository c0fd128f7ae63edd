package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"labkeeper/config"
	"labkeeper/internal/dto"
	"labkeeper/internal/model"
	"labkeeper/internal/repository"
)

// ExportService 报表导出业务接口
type ExportService interface {
	// ExportBorrowings 导出借用流水为 xlsx，返回文件内容与建议文件名
	ExportBorrowings(ctx context.Context, req *dto.BorrowingListRequest) ([]byte, string, error)
}

type exportService struct {
	cfg    *config.BorrowConfig
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.BorrowConfig, repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{cfg: cfg, repo: repo, logger: logger}
}

// borrowingExportHeaders 借用流水导出表头
var borrowingExportHeaders = []string{
	"流水号", "设备名称", "序列号", "借用人", "借出时间",
	"预期归还", "实际归还", "状态", "续借次数", "罚金", "罚金已缴",
}

func (s *exportService) ExportBorrowings(ctx context.Context, req *dto.BorrowingListRequest) ([]byte, string, error) {
	// 导出不分页，一次取全量（上限由调用方过滤条件控制）
	items, _, err := s.repo.Borrowing.List(ctx, repository.BorrowingFilter{
		EquipmentID: req.EquipmentID,
		UserID:      req.UserID,
		Status:      req.Status,
		Offset:      0,
		Limit:       10000,
	})
	if err != nil {
		s.logger.Error("导出借用流水失败", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "借用流水"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, header := range borrowingExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, "", err
		}
	}

	now := time.Now()
	for row, txn := range items {
		equipmentName, serial := "", ""
		if txn.Equipment != nil {
			equipmentName = txn.Equipment.Name
			serial = txn.Equipment.SerialNumber
		}

		actualReturn := ""
		if txn.ActualReturnDate != nil {
			actualReturn = txn.ActualReturnDate.Format("2006-01-02 15:04")
		}

		// 未归还的流水按当前时刻估算罚金，便于管理员催还
		penalty := txn.PenaltyAmount
		if txn.ActualReturnDate == nil && txn.Outstanding() {
			penalty = ComputePenalty(txn.ExpectedReturnDate, now, s.cfg.PenaltyRatePerDay)
		}

		paid := "否"
		if txn.PenaltyPaid {
			paid = "是"
		}

		values := []interface{}{
			txn.TransactionID,
			equipmentName,
			serial,
			txn.UserID,
			txn.BorrowDate.Format("2006-01-02 15:04"),
			txn.ExpectedReturnDate.Format("2006-01-02 15:04"),
			actualReturn,
			borrowingStatusLabel(txn.Status),
			txn.ExtensionCount,
			penalty,
			paid,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, "", err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		s.logger.Error("写出 xlsx 失败", zap.Error(err))
		return nil, "", err
	}

	filename := fmt.Sprintf("borrowings_%s.xlsx", now.Format("20060102_150405"))
	return buf.Bytes(), filename, nil
}

// borrowingStatusLabel 借用状态中文标签
func borrowingStatusLabel(status string) string {
	switch status {
	case model.BorrowingPending:
		return "待审批"
	case model.BorrowingActive:
		return "在借"
	case model.BorrowingReturned:
		return "已归还"
	case model.BorrowingOverdue:
		return "逾期"
	case model.BorrowingRejected:
		return "已驳回"
	case model.BorrowingCancelled:
		return "已取消"
	default:
		return status
	}
}
