package server

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/pipeline"
)

type exportResponse struct {
	Xlsx []byte `json:"xlsx"`
}

// ExportRun rebuilds the XLSX validation report of a stored run.
func (s *PaperworkService) ExportRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.runs == nil {
		return nil, status.Error(codes.FailedPrecondition, "run store is not configured")
	}
	var req runRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	id, err := parseRunID(req.ID)
	if err != nil {
		return nil, err
	}
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	if len(run.Validation) == 0 {
		return nil, status.Errorf(codes.FailedPrecondition, "run %s has no validation result", id)
	}

	out := &pipeline.Outcome{RunID: run.ID}
	for _, part := range []struct {
		raw  json.RawMessage
		into any
	}{
		{run.Orders, &out.Orders},
		{run.Instruction, &out.Instruction},
		{run.Validation, &out.Validation},
	} {
		if len(part.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(part.raw, part.into); err != nil {
			s.logger.ErrorContext(ctx, "export.run.decode_failed", "run_id", id, "err", err)
			return nil, status.Errorf(codes.Internal, "decode run: %v", err)
		}
	}
	out.DangerousGoods = s.proc.ClassifyDangerousGoods(out.Orders, out.Validation)
	out.BuyerSameAsConsignee = s.proc.BuyerSameAsConsignee(out.Orders)

	xlsx, err := s.reports.ValidationReportXLSX(out)
	if err != nil {
		s.logger.ErrorContext(ctx, "export.xlsx.failed", "run_id", id, "err", err)
		return nil, status.Errorf(codes.Internal, "report: %v", err)
	}
	return encode(exportResponse{Xlsx: xlsx})
}
