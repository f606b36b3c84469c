package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// Fully-qualified service names. Each service is mounted under "/<name>/".
const (
	InvoiceServiceName       = "billdesk.v1.InvoiceService"
	ReturnServiceName        = "billdesk.v1.ReturnService"
	ReturnSessionServiceName = "billdesk.v1.ReturnSessionService"
)

// Procedure returns the HTTP path of a method.
func Procedure(service, method string) string {
	return "/" + service + "/" + method
}

type router struct {
	service string
	mux     *http.ServeMux
	opts    []connect.HandlerOption
}

func newRouter(service string, opts []connect.HandlerOption) *router {
	return &router{
		service: service,
		mux:     http.NewServeMux(),
		opts:    append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...),
	}
}

// unary registers one method. Errors returned by fn are mapped with
// toConnectError.
func unary[Req, Res any](r *router, method string, fn func(context.Context, *Req) (*Res, error)) {
	path := Procedure(r.service, method)
	r.mux.Handle(path, connect.NewUnaryHandler(path,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, req.Msg)
			if err != nil {
				return nil, toConnectError(err)
			}
			return connect.NewResponse(res), nil
		},
		r.opts...,
	))
}

func (r *router) handler() (string, http.Handler) {
	return "/" + r.service + "/", r.mux
}

// NewInvoiceServiceHandler builds the HTTP handler for svc and returns the
// path to mount it on.
func NewInvoiceServiceHandler(svc *InvoiceService, opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRouter(InvoiceServiceName, opts)
	unary(r, "NextInvoiceNumber", svc.NextInvoiceNumber)
	unary(r, "SaveInvoice", svc.SaveInvoice)
	unary(r, "GetInvoice", svc.GetInvoice)
	unary(r, "ListInvoices", svc.ListInvoices)
	unary(r, "DeleteInvoice", svc.DeleteInvoice)
	unary(r, "PreviewTotals", svc.PreviewTotals)
	unary(r, "GetSalesStats", svc.GetSalesStats)
	unary(r, "ListProducts", svc.ListProducts)
	return r.handler()
}

// NewReturnServiceHandler builds the HTTP handler for svc.
func NewReturnServiceHandler(svc *ReturnService, opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRouter(ReturnServiceName, opts)
	unary(r, "CheckReturn", svc.CheckReturn)
	unary(r, "GetReturn", svc.GetReturn)
	unary(r, "ListReturns", svc.ListReturns)
	unary(r, "DeleteReturn", svc.DeleteReturn)
	unary(r, "GetUpdatedBill", svc.GetUpdatedBill)
	unary(r, "ListUpdatedBills", svc.ListUpdatedBills)
	unary(r, "GetDocument", svc.GetDocument)
	unary(r, "GetDashboard", svc.GetDashboard)
	return r.handler()
}

// NewReturnSessionServiceHandler builds the HTTP handler for svc.
func NewReturnSessionServiceHandler(svc *ReturnSessionService, opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRouter(ReturnSessionServiceName, opts)
	unary(r, "StartSession", svc.StartSession)
	unary(r, "Search", svc.Search)
	unary(r, "Resume", svc.Resume)
	unary(r, "RemoveItem", svc.RemoveItem)
	unary(r, "RestoreItem", svc.RestoreItem)
	unary(r, "UpdateItem", svc.UpdateItem)
	unary(r, "UpdateHeader", svc.UpdateHeader)
	unary(r, "Submit", svc.Submit)
	unary(r, "Reset", svc.Reset)
	unary(r, "GetSession", svc.GetSession)
	unary(r, "EndSession", svc.EndSession)
	return r.handler()
}
