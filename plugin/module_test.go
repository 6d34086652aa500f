package plugin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/reglet-dev/ledger-guest/domain/entities"
	"github.com/reglet-dev/ledger-guest/domain/errors"
	"github.com/reglet-dev/ledger-guest/internal/abi"
	"github.com/reglet-dev/ledger-guest/wireformat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ModuleSuite struct {
	suite.Suite
	arena  *abi.Arena
	codec  *wireformat.Codec
	module *Module
	logs   []string
}

func (s *ModuleSuite) SetupTest() {
	s.arena = abi.NewArena()
	s.codec = wireformat.NewCodec(s.arena)
	s.logs = nil

	// Acts as the host: read each line, then hand the buffer back.
	sink := func(addr, length uint32) {
		line, err := s.codec.ReadLengthDelimited(wireformat.LengthDelimited{Addr: addr, Len: length})
		s.Require().NoError(err)
		s.logs = append(s.logs, line)
		s.module.ReleaseBuffer(addr, length)
	}
	s.module = New(WithArena(s.arena), WithSink(sink), WithLogLevel(slog.LevelDebug))
}

func (s *ModuleSuite) TearDownTest() {
	count, bytes := s.arena.Stats()
	s.Zero(count, "every block must be released by the end of the test")
	s.Zero(bytes)
}

func TestModuleSuite(t *testing.T) {
	suite.Run(t, new(ModuleSuite))
}

func (s *ModuleSuite) dispatch(request string) map[string]any {
	in, err := s.codec.WriteNullTerminated(request)
	s.Require().NoError(err)
	defer s.module.ReleaseBuffer(in.Addr, 0)

	out := s.module.DispatchRequest(in.Addr)
	raw := s.takeResult(out)

	var resp map[string]any
	s.Require().NoError(json.Unmarshal([]byte(raw), &resp), raw)
	return resp
}

// takeResult reads a null-terminated result and releases it.
func (s *ModuleSuite) takeResult(addr uint32) string {
	raw, err := s.codec.ReadNullTerminated(wireformat.NullTerminated{Addr: addr})
	s.Require().NoError(err)
	s.module.ReleaseBuffer(addr, uint32(len(raw)+1))
	return raw
}

func (s *ModuleSuite) callLedger(fn func(a, b, c, d uint32) uint32, first, second string) string {
	x := s.codec.WriteLengthDelimited(first)
	y := s.codec.WriteLengthDelimited(second)
	defer s.module.ReleaseBuffer(x.Addr, x.Len)
	defer s.module.ReleaseBuffer(y.Addr, y.Len)

	return s.takeResult(fn(x.Addr, x.Len, y.Addr, y.Len))
}

func (s *ModuleSuite) TestAllocate() {
	addr := s.module.Allocate(32)
	s.NotZero(addr)

	size, err := s.arena.Size(addr)
	s.Require().NoError(err)
	s.Equal(uint32(32), size)

	s.module.ReleaseBuffer(addr, 32)
}

func (s *ModuleSuite) TestReleaseBuffer_DoubleReleaseIsLogged() {
	addr := s.module.Allocate(8)
	s.module.ReleaseBuffer(addr, 8)
	s.module.ReleaseBuffer(addr, 8)

	s.Require().Len(s.logs, 1)
	s.Contains(s.logs[0], `msg="Rejected release"`)
	s.Contains(s.logs[0], "is not a live allocation")
}

func (s *ModuleSuite) TestDispatch_Get() {
	resp := s.dispatch(`{"method":"GET","path":"/api/data"}`)

	s.Equal(float64(http.StatusOK), resp["statusCode"])
	s.Equal(map[string]any{"Content-Type": entities.ContentTypeJSON}, resp["headers"])
	s.Equal(map[string]any{"message": "Hello from WebAssembly API!"}, resp["body"])
}

func (s *ModuleSuite) TestDispatch_PostEchoesBody() {
	resp := s.dispatch(`{"method":"POST","path":"/api/data","body":{"x":1}}`)

	s.Equal(float64(http.StatusCreated), resp["statusCode"])
	body, ok := resp["body"].(map[string]any)
	s.Require().True(ok)
	s.Equal(map[string]any{"x": float64(1)}, body["received"])
}

func (s *ModuleSuite) TestDispatch_NotFound() {
	resp := s.dispatch(`{"method":"PATCH","path":"/api/data"}`)

	s.Equal(float64(http.StatusNotFound), resp["statusCode"])
	s.Equal(map[string]any{"Content-Type": entities.ContentTypeJSON}, resp["headers"])
	s.Equal(map[string]any{"error": "Not Found"}, resp["body"])
}

func (s *ModuleSuite) TestDispatch_MalformedRequest() {
	resp := s.dispatch(`GET /api/data`)

	s.Equal(float64(http.StatusBadRequest), resp["statusCode"])
	body := resp["body"].(map[string]any)
	s.Equal("Bad Request", body["error"])
	s.Equal("parse", body["detail"].(map[string]any)["type"])
}

func (s *ModuleSuite) TestDispatch_UnknownAddress() {
	out := s.module.DispatchRequest(0xDEAD)

	var resp map[string]any
	s.Require().NoError(json.Unmarshal([]byte(s.takeResult(out)), &resp))
	s.Equal(float64(http.StatusBadRequest), resp["statusCode"])
	s.Equal("malformed_buffer", resp["body"].(map[string]any)["detail"].(map[string]any)["type"])
}

func (s *ModuleSuite) TestDispatch_HandlerPanicRecovered() {
	s.module.Router().Handle(http.MethodGet, "/boom", func(entities.Request) entities.Response {
		panic("boom")
	})

	resp := s.dispatch(`{"method":"GET","path":"/boom"}`)
	s.Equal(float64(http.StatusInternalServerError), resp["statusCode"])
	detail := resp["body"].(map[string]any)["detail"].(map[string]any)
	s.Equal("panic", detail["type"])
	s.Contains(detail["message"], "boom")
}

func (s *ModuleSuite) TestDispatch_AllocationErrorIsFatal() {
	s.module.Router().Handle(http.MethodGet, "/oom", func(entities.Request) entities.Response {
		panic(&errors.AllocationError{Requested: 1, Limit: 1})
	})

	in, err := s.codec.WriteNullTerminated(`{"method":"GET","path":"/oom"}`)
	s.Require().NoError(err)
	defer s.module.ReleaseBuffer(in.Addr, 0)

	s.Panics(func() { s.module.DispatchRequest(in.Addr) })
}

func (s *ModuleSuite) TestDispatch_UnencodableBody() {
	s.module.Router().Handle(http.MethodGet, "/chan", func(entities.Request) entities.Response {
		return entities.Response{StatusCode: http.StatusOK, Headers: entities.JSONHeaders(), Body: make(chan int)}
	})

	resp := s.dispatch(`{"method":"GET","path":"/chan"}`)
	s.Equal(float64(http.StatusInternalServerError), resp["statusCode"])
}

func (s *ModuleSuite) TestCreditLeg() {
	query := s.callLedger(s.module.ExecuteCreditLeg, "25.25", "alice")

	s.True(strings.HasPrefix(query, "PREFIX ex: <http://example.org/>"), query)
	s.Equal(1, strings.Count(query, "alice"))
}

func (s *ModuleSuite) TestCreditLeg_InvalidAccount() {
	out := s.callLedger(s.module.ExecuteCreditLeg, "25.25", "alice } ; DROP")
	s.True(strings.HasPrefix(out, "error: invalid account identifier"), out)
}

func (s *ModuleSuite) TestApplyCreditResult() {
	summary := s.callLedger(s.module.ApplyCreditResult, `{"results":[{"balance":"100.50"}]}`, "25.25")
	s.Equal("Current balance: 100.5. After credit of 25.25, new balance: 125.75", summary)

	s.Contains(strings.Join(s.logs, "\n"), `msg="Extracted balance" balance=100.5`)
}

func (s *ModuleSuite) TestApplyCreditResult_ParseError() {
	out := s.callLedger(s.module.ApplyCreditResult, "not json", "25.25")
	s.True(strings.HasPrefix(out, "error: failed to parse result JSON"), out)
}

func (s *ModuleSuite) TestApplyCreditResult_MissingBalance() {
	out := s.callLedger(s.module.ApplyCreditResult, `{"results":[]}`, "25.25")
	s.True(strings.HasPrefix(out, "error: failed to extract balance"), out)
}

func (s *ModuleSuite) TestApplyCreditResult_OutOfRangeInputs() {
	out := s.callLedger(s.module.ApplyCreditResult, `{"results":[{"balance":"1"}]}`, "1e30000000")
	s.True(strings.HasPrefix(out, "error: failed to parse amount"), out)

	out = s.callLedger(s.module.ApplyCreditResult, `{"results":{"[0]":{"balance":"5"}}}`, "1")
	s.True(strings.HasPrefix(out, "error: failed to extract balance"), out)
}

func (s *ModuleSuite) TestDebitLeg() {
	out := s.callLedger(s.module.ExecuteDebitLeg, "10", "bob")
	s.Equal("Debiting 10 from account bob", out)
	s.Contains(strings.Join(s.logs, "\n"), `msg="Executing debit leg"`)
}

func (s *ModuleSuite) TestLedger_EmptyInputs() {
	out := s.callLedger(s.module.ExecuteDebitLeg, "", "")
	s.True(strings.HasPrefix(out, "error: "), out)
}

func (s *ModuleSuite) TestLedger_UnknownInputAddress() {
	out := s.takeResult(s.module.ExecuteCreditLeg(0xBEEF, 4, 0xBEEF, 4))
	s.True(strings.HasPrefix(out, "error: malformed buffer"), out)
}

func (s *ModuleSuite) TestRecoverString() {
	out := func() (out uint32) {
		defer s.module.recoverString("test", &out)
		panic("boom")
	}()
	s.Equal("error: internal test panic: boom", s.takeResult(out))
}

func (s *ModuleSuite) TestDescribe() {
	raw := s.takeResult(s.module.Describe())

	var m entities.Manifest
	s.Require().NoError(json.Unmarshal([]byte(raw), &m))
	s.Equal(Name, m.Name)
	s.Equal(Version, m.Version)

	names := make([]string, 0, len(m.EntryPoints))
	for _, ep := range m.EntryPoints {
		names = append(names, ep.Name)
	}
	s.ElementsMatch([]string{
		"allocate", "release_buffer", "dispatch_request",
		"execute_credit_leg", "apply_credit_result", "execute_debit_leg", "describe",
	}, names)

	s.Require().Len(m.Imports, 1)
	s.Equal("ledger_host.log_message", m.Imports[0].Name)
	s.Contains(m.Schemas, "request")
}

func TestNew_WithoutSinkAllocatesNothingForLogs(t *testing.T) {
	m := New()

	addr := m.Allocate(4)
	m.ReleaseBuffer(addr, 4)
	m.ReleaseBuffer(addr, 4) // logged, but there is no sink to receive it

	count, _ := m.Arena().Stats()
	assert.Zero(t, count)
}
