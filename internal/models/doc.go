// Package models defines the documents handled by Billdesk.
//
// # Documents
//
// Three document kinds share one shape (Document) and are told apart by an
// explicit Kind set when the document is loaded:
//   - Invoice: the original sales bill, id NB<seq>, issued by the ledger
//   - ReturnNote: credit document against one invoice, id RB<seq>
//   - UpdatedBill: the invoice after its return note is applied, id UB<seq>
//
// # Relationships
//
// Documents refer to each other by id only. A ReturnNote and an UpdatedBill
// carry the InvoiceID they belong to; an UpdatedBill also carries the
// ReturnID it was derived from. There is at most one ReturnNote, and so at
// most one UpdatedBill, per invoice.
//
// # Money
//
// Quantities, rates and totals are shopspring decimals. Totals are always
// computed by the calculator package, never accepted from clients.
package models
