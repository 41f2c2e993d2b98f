package server

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/shipdocs/internal/async"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/export"
	"github.com/joseph-ayodele/shipdocs/internal/locator"
	"github.com/joseph-ayodele/shipdocs/internal/pipeline"
	"github.com/joseph-ayodele/shipdocs/internal/repository"
)

type documentRequest struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"` // base64 in JSON
	Ref      string `json:"ref"`
}

type emailRequest struct {
	Body string `json:"body"`
	Ref  string `json:"ref"`
}

type reconcileRequest struct {
	Orders      []*entity.OrderRecord       `json:"orders"`
	Instruction *entity.ShipmentInstruction `json:"instruction"`
}

type reconcileResponse struct {
	Validation     *entity.ValidationResult     `json:"validation"`
	Orders         []*entity.OrderRecord        `json:"orders"`
	DangerousGoods []entity.DangerousGoodsGroup `json:"dangerous_goods"`
}

type pairRequest struct {
	Orders []documentRequest `json:"orders"`
	Email  emailRequest      `json:"email"`
	Report bool              `json:"report"`
}

type pairResponse struct {
	*pipeline.Outcome
	Report []byte `json:"report,omitempty"`
}

type folderRequest struct {
	Dir string `json:"dir"`
}

type folderResponse struct {
	Queued []string `json:"queued"`
}

type runRequest struct {
	ID    string `json:"id"`
	Limit int    `json:"limit"`
}

// PaperworkService serves the extraction and reconciliation operations over gRPC.
type PaperworkService struct {
	proc    *pipeline.Processor
	runs    repository.RunRepository // optional
	loc     *locator.Locator
	queue   *async.Queue // optional
	reports *export.Service
	logger  *slog.Logger
}

func NewPaperworkService(proc *pipeline.Processor, runs repository.RunRepository, loc *locator.Locator, queue *async.Queue, reports *export.Service, logger *slog.Logger) *PaperworkService {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = locator.New(logger)
	}
	if reports == nil {
		reports = export.NewService(logger)
	}
	return &PaperworkService{proc: proc, runs: runs, loc: loc, queue: queue, reports: reports, logger: logger}
}

func (s *PaperworkService) ParseOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req documentRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	doc, err := s.document(ctx, req)
	if err != nil {
		return nil, err
	}
	rec, err := s.proc.ParseOrder(ctx, doc)
	if err != nil {
		s.logger.ErrorContext(ctx, "rpc.parse_order.failed", "file", doc.Filename, "err", err)
		return nil, common.ToStatus(err)
	}
	return encode(rec)
}

func (s *PaperworkService) ParseEmail(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req emailRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	body, err := s.emailBody(ctx, req)
	if err != nil {
		return nil, err
	}
	inst, err := s.proc.ParseEmail(ctx, body)
	if err != nil {
		s.logger.ErrorContext(ctx, "rpc.parse_email.failed", "err", err)
		return nil, common.ToStatus(err)
	}
	return encode(inst)
}

func (s *PaperworkService) Reconcile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req reconcileRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	res, err := s.proc.Reconcile(ctx, req.Orders, req.Instruction)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return encode(reconcileResponse{
		Validation:     res,
		Orders:         req.Orders,
		DangerousGoods: s.proc.ClassifyDangerousGoods(req.Orders, res),
	})
}

func (s *PaperworkService) ProcessPair(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pairRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if len(req.Orders) == 0 {
		return nil, status.Error(codes.InvalidArgument, "at least one order document is required")
	}
	orders := make([]pipeline.OrderInput, 0, len(req.Orders))
	for _, d := range req.Orders {
		doc, err := s.document(ctx, d)
		if err != nil {
			return nil, err
		}
		orders = append(orders, doc)
	}
	body, err := s.emailBody(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	out, err := s.proc.ProcessPair(ctx, orders, body)
	if err != nil {
		s.logger.ErrorContext(ctx, "rpc.process_pair.failed", "err", err)
		return nil, common.ToStatus(err)
	}
	resp := pairResponse{Outcome: out}
	if req.Report {
		if resp.Report, err = s.reports.ValidationReportXLSX(out); err != nil {
			s.logger.ErrorContext(ctx, "export.xlsx.failed", "run_id", out.RunID, "err", err)
			return nil, status.Errorf(codes.Internal, "report: %v", err)
		}
	}
	return encode(resp)
}

// SubmitFolder queues every order/email pair found under dir for background processing.
func (s *PaperworkService) SubmitFolder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req folderRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	dir := strings.TrimSpace(req.Dir)
	if err := common.ValidateAndReturnError(common.NewValidator().Field("dir", dir, common.Required)); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, status.Error(codes.FailedPrecondition, "background processing is not enabled")
	}
	s.loc.Invalidate(dir)
	entries, err := s.loc.List(ctx, dir)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	resp := folderResponse{Queued: []string{}}
	for _, p := range locator.Pairs(entries) {
		job := async.Job{Pair: p, TraceID: common.RequestIDFromContext(ctx)}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			return nil, status.Errorf(codes.Unavailable, "enqueue %s: %v", p.Dir, err)
		}
		resp.Queued = append(resp.Queued, p.Dir)
	}
	s.logger.InfoContext(ctx, "rpc.submit_folder.ok", "dir", dir, "pairs", len(resp.Queued))
	return encode(resp)
}

func (s *PaperworkService) GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
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
	return encode(run)
}

func (s *PaperworkService) ListRuns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.runs == nil {
		return nil, status.Error(codes.FailedPrecondition, "run store is not configured")
	}
	var req runRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	runs, err := s.runs.ListRecent(ctx, req.Limit)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	if runs == nil {
		runs = []*entity.Run{}
	}
	return encode(map[string]any{"runs": runs})
}

func (s *PaperworkService) document(ctx context.Context, req documentRequest) (pipeline.OrderInput, error) {
	in := pipeline.OrderInput{Filename: strings.TrimSpace(req.Filename), Data: req.Data}
	if ref := strings.TrimSpace(req.Ref); ref != "" {
		data, err := s.loc.Locate(ctx, ref)
		if err != nil {
			return in, common.ToStatus(err)
		}
		in.Data = data
		if in.Filename == "" {
			in.Filename = path.Base(ref)
		}
	}
	if len(in.Data) == 0 {
		return in, status.Error(codes.InvalidArgument, "order document needs data or ref")
	}
	if in.Filename == "" {
		in.Filename = "order.pdf"
	}
	return in, nil
}

func (s *PaperworkService) emailBody(ctx context.Context, req emailRequest) (string, error) {
	if ref := strings.TrimSpace(req.Ref); ref != "" {
		data, err := s.loc.Locate(ctx, ref)
		if err != nil {
			return "", common.ToStatus(err)
		}
		return string(data), nil
	}
	return req.Body, nil
}

// parseRunID validates a run id from a request.
func parseRunID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	v := common.NewValidator().Field("id", raw, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}
