package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/pipeline"
	"github.com/joseph-ayodele/shipdocs/internal/repository"
)

const order3015 = `SALES ORDER
Sold To:
Fastenal Company
123 Industrial Rd
Winona, MN 55987
Ship To:
Fastenal Company
123 Industrial Rd
Winona, MN 55987
Item No.  Qty  Unit  Description                        Unit Price   Total
AND-FG2   2    PAIL  ANDEROL FGCS-2 Food Grade Grease   125.00       250.00
PLT-CHG   1    EA    PALLET CHARGE                      25.00        25.00
IPA-99    4    EA    Isopropyl Alcohol 99%              20.00        80.00
Subtotal: 355.00
`

const email3015 = "SO 3015 for Fastenal, 2 pails of ANDEROL FGCS-2 Food Grade Grease, batch WH1K25G043\n" +
	"4 each of Isopropyl Alcohol 99%, lot IPA-7"

// textExtractor treats the input bytes as the layout text of the PDF.
type textExtractor struct{}

func (textExtractor) Extract(_ context.Context, filename string, data []byte) (*entity.RawDocument, error) {
	if len(data) == 0 {
		return nil, common.NewParseError("not a pdf: "+filename, nil)
	}
	return &entity.RawDocument{Filename: filename, RawText: string(data), PageCount: 1}, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newClient(t *testing.T, withRuns bool) *PaperworkClient {
	t.Helper()
	logger := quiet()
	var runs repository.RunRepository
	deps := pipeline.Deps{Extractor: textExtractor{}}
	if withRuns {
		db, err := repository.Open(context.Background(), repository.Config{Driver: "sqlite", DSN: ":memory:"}, logger)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(db.Close)
		runs = repository.NewRunRepository(db, logger)
		if err := runs.Migrate(context.Background()); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
		deps.Store = runs
	}
	svc := NewPaperworkService(pipeline.NewProcessor(logger, deps), runs, nil, nil, nil, logger)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryRequestLogger(logger)))
	RegisterPaperworkServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewPaperworkClient(conn)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestProcessPairOverGRPC(t *testing.T) {
	c := newClient(t, true)
	ctx := context.Background()

	req := mustStruct(t, map[string]any{
		"orders": []any{map[string]any{
			"filename": "salesorder_3015.pdf",
			"data":     base64.StdEncoding.EncodeToString([]byte(order3015)),
		}},
		"email":  map[string]any{"body": email3015},
		"report": true,
	})
	resp, err := c.Call(ctx, "ProcessPair", req)
	if err != nil {
		t.Fatalf("ProcessPair: %v", err)
	}
	validation := resp.Fields["validation"].GetStructValue()
	if got := validation.Fields["overall_status"].GetStringValue(); got != "passed" {
		t.Fatalf("overall_status = %q", got)
	}
	if !resp.Fields["buyer_same_as_consignee"].GetStructValue().Fields["3015"].GetBoolValue() {
		t.Error("expected buyer and consignee to match")
	}
	report, err := base64.StdEncoding.DecodeString(resp.Fields["report"].GetStringValue())
	if err != nil || !bytes.HasPrefix(report, []byte("PK")) {
		t.Errorf("report is not an xlsx archive (err=%v, %d bytes)", err, len(report))
	}

	runID := resp.Fields["run_id"].GetStringValue()
	run, err := c.Call(ctx, "GetRun", mustStruct(t, map[string]any{"id": runID}))
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	nums := run.Fields["order_numbers"].GetListValue().GetValues()
	if len(nums) != 1 || nums[0].GetStringValue() != "3015" || !run.Fields["passed"].GetBoolValue() {
		t.Errorf("run = %v", run)
	}

	list, err := c.Call(ctx, "ListRuns", mustStruct(t, map[string]any{"limit": 5}))
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if n := len(list.Fields["runs"].GetListValue().GetValues()); n != 1 {
		t.Errorf("runs = %d", n)
	}

	exp, err := c.Call(ctx, "ExportRun", mustStruct(t, map[string]any{"id": runID}))
	if err != nil {
		t.Fatalf("ExportRun: %v", err)
	}
	xlsx, err := base64.StdEncoding.DecodeString(exp.Fields["xlsx"].GetStringValue())
	if err != nil || !bytes.HasPrefix(xlsx, []byte("PK")) {
		t.Errorf("exported run is not an xlsx archive (err=%v)", err)
	}
}

func TestParseOrderByRef(t *testing.T) {
	c := newClient(t, false)
	p := filepath.Join(t.TempDir(), "salesorder_3015.pdf")
	if err := os.WriteFile(p, []byte(order3015), 0o644); err != nil {
		t.Fatal(err)
	}
	resp, err := c.Call(context.Background(), "ParseOrder", mustStruct(t, map[string]any{"ref": p}))
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	if got := resp.Fields["order_number"].GetStringValue(); got != "3015" {
		t.Errorf("order_number = %q", got)
	}
	if n := len(resp.Fields["items"].GetListValue().GetValues()); n != 3 {
		t.Errorf("items = %d", n)
	}
}

func TestRPCErrors(t *testing.T) {
	c := newClient(t, true)
	ctx := context.Background()
	cases := []struct {
		name   string
		method string
		req    map[string]any
		want   codes.Code
	}{
		{"empty email", "ParseEmail", map[string]any{"body": "   "}, codes.InvalidArgument},
		{"order without data", "ParseOrder", map[string]any{"filename": "a.pdf"}, codes.InvalidArgument},
		{"missing ref", "ParseOrder", map[string]any{"ref": filepath.Join(t.TempDir(), "nope.pdf")}, codes.NotFound},
		{"reconcile without instruction", "Reconcile", map[string]any{"orders": []any{}}, codes.InvalidArgument},
		{"pair without orders", "ProcessPair", map[string]any{"email": map[string]any{"body": email3015}}, codes.InvalidArgument},
		{"bad run id", "GetRun", map[string]any{"id": "3015"}, codes.InvalidArgument},
		{"unknown run", "GetRun", map[string]any{"id": "6f1c2a7e-8a8d-4f63-9a53-0a8f4f1d2c11"}, codes.NotFound},
		{"blank dir", "SubmitFolder", map[string]any{"dir": "  "}, codes.InvalidArgument},
		{"missing export id", "ExportRun", map[string]any{}, codes.InvalidArgument},
		{"no queue", "SubmitFolder", map[string]any{"dir": t.TempDir()}, codes.FailedPrecondition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Call(ctx, tc.method, mustStruct(t, tc.req))
			if got := status.Code(err); got != tc.want {
				t.Errorf("code = %v, want %v (err=%v)", got, tc.want, err)
			}
		})
	}
}

func TestReconcileOverGRPC(t *testing.T) {
	c := newClient(t, false)
	req := mustStruct(t, map[string]any{
		"orders": []any{map[string]any{
			"order_number": "3015",
			"items": []any{
				map[string]any{"item_code": "AND-FG2", "description": "ANDEROL FGCS-2 Food Grade Grease", "quantity": "2"},
			},
		}},
		"instruction": map[string]any{
			"order_numbers": []any{"3015"},
			"items_by_order": map[string]any{
				"3015": []any{map[string]any{"description": "ANDEROL FGCS-2 Food Grade Grease", "quantity": "2", "batch_number": "WH1K25G043"}},
			},
		},
	})
	resp, err := c.Call(context.Background(), "Reconcile", req)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := resp.Fields["validation"].GetStructValue().Fields["overall_status"].GetStringValue(); got != "passed" {
		t.Errorf("overall_status = %q", got)
	}
	item := resp.Fields["orders"].GetListValue().GetValues()[0].GetStructValue().
		Fields["items"].GetListValue().GetValues()[0].GetStructValue()
	if got := item.Fields["batch_number"].GetStringValue(); got != "WH1K25G043" {
		t.Errorf("batch_number = %q", got)
	}
}
