package camt_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ardelhq/ebics-sync/internal/camt"
	"github.com/ardelhq/ebics-sync/internal/domain"
)

const samplePayload = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.053.001.04">
  <BkToCstmrStmt>
    <GrpHdr>
      <MsgId>MSG-0001</MsgId>
      <CreDtTm>2024-01-16T04:10:00</CreDtTm>
    </GrpHdr>
    <Stmt>
      <Id>STMT-2024-015</Id>
      <FrToDt>
        <FrDtTm>2024-01-15T00:00:00</FrDtTm>
        <ToDtTm>2024-01-15T23:59:59</ToDtTm>
      </FrToDt>
      <Acct>
        <Id><IBAN>CH9300762011623852957</IBAN></Id>
        <Ccy>CHF</Ccy>
      </Acct>
      <Bal>
        <Tp><CdOrPrtry><Cd>OPBD</Cd></CdOrPrtry></Tp>
        <Amt Ccy="CHF">1000.00</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <Dt><Dt>2024-01-15</Dt></Dt>
      </Bal>
      <Bal>
        <Tp><CdOrPrtry><Cd>CLBD</Cd></CdOrPrtry></Tp>
        <Amt Ccy="CHF">1150.50</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <Dt><Dt>2024-01-15</Dt></Dt>
      </Bal>
      <Ntry>
        <Amt Ccy="CHF">250.50</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <Sts>BOOK</Sts>
        <BookgDt><Dt>2024-01-15</Dt></BookgDt>
        <AcctSvcrRef>SVCR-111</AcctSvcrRef>
        <NtryDtls>
          <TxDtls>
            <Refs>
              <AcctSvcrRef>SVCR-111-1</AcctSvcrRef>
              <TxId>TX-0001</TxId>
            </Refs>
            <Amt Ccy="CHF">250.50</Amt>
            <CdtDbtInd>CRDT</CdtDbtInd>
            <RltdPties>
              <Dbtr>
                <Nm>Muster AG</Nm>
                <PstlAdr>
                  <StrtNm>Bahnhofstrasse</StrtNm>
                  <BldgNb>12</BldgNb>
                  <PstCd>8001</PstCd>
                  <TwnNm>Zurich</TwnNm>
                </PstlAdr>
              </Dbtr>
              <DbtrAcct><Id><IBAN>CH5604835012345678009</IBAN></Id></DbtrAcct>
            </RltdPties>
            <RmtInf>
              <Ustrd>Invoice INV-2024-042</Ustrd>
              <Strd><CdtrRefInf><Ref>210000000003139471430009017</Ref></CdtrRefInf></Strd>
            </RmtInf>
          </TxDtls>
        </NtryDtls>
      </Ntry>
      <Ntry>
        <Amt Ccy="CHF">100.00</Amt>
        <CdtDbtInd>DBIT</CdtDbtInd>
        <Sts>BOOK</Sts>
        <ValDt><Dt>2024-01-15</Dt></ValDt>
        <NtryDtls>
          <TxDtls>
            <Refs>
              <TxId>TX-0002</TxId>
              <InstrId>RUN-77-0</InstrId>
            </Refs>
            <RltdPties>
              <Cdtr>
                <Nm>Energie Zurich</Nm>
                <PstlAdr>
                  <AdrLine>Postfach 100</AdrLine>
                  <AdrLine>8022 Zurich</AdrLine>
                </PstlAdr>
              </Cdtr>
            </RltdPties>
            <RmtInf><Ustrd>Bill 900-123</Ustrd></RmtInf>
          </TxDtls>
        </NtryDtls>
      </Ntry>
    </Stmt>
  </BkToCstmrStmt>
</Document>`

func TestParseStatementMeta(t *testing.T) {
	parsed, err := camt.Parse([]byte(samplePayload), "CHF")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	meta := parsed.Meta
	if meta.AccountID != "CH9300762011623852957" {
		t.Errorf("Expected IBAN account id, got %q", meta.AccountID)
	}
	if meta.StatementID != "STMT-2024-015" {
		t.Errorf("Expected statement id STMT-2024-015, got %q", meta.StatementID)
	}
	if meta.Currency != "CHF" {
		t.Errorf("Expected currency CHF, got %q", meta.Currency)
	}
	if !meta.HasDate || meta.Date.Format("2006-01-02") != "2024-01-15" {
		t.Errorf("Expected statement date 2024-01-15, got %v (has=%v)", meta.Date, meta.HasDate)
	}
	if !meta.Opening.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("Expected opening balance 1000.00, got %s", meta.Opening)
	}
	if !meta.Closing.Equal(decimal.RequireFromString("1150.50")) {
		t.Errorf("Expected closing balance 1150.50, got %s", meta.Closing)
	}
}

func TestParseTransactions(t *testing.T) {
	parsed, err := camt.Parse([]byte(samplePayload), "CHF")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Transactions) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(parsed.Transactions))
	}

	credit := parsed.Transactions[0]
	if credit.Side != domain.Credit {
		t.Errorf("Expected first transaction to be a credit, got %s", credit.Side)
	}
	if credit.UniqueRef != "SVCR-111-1" {
		t.Errorf("Expected account-servicer reference to win, got %q", credit.UniqueRef)
	}
	if credit.Counterparty.Name != "Muster AG" {
		t.Errorf("Expected debtor name for a credit, got %q", credit.Counterparty.Name)
	}
	if credit.Counterparty.Address != "Bahnhofstrasse 12 8001 Zurich" {
		t.Errorf("Expected structured address, got %q", credit.Counterparty.Address)
	}
	if credit.Counterparty.IBAN != "CH5604835012345678009" {
		t.Errorf("Expected debtor IBAN, got %q", credit.Counterparty.IBAN)
	}
	if !strings.Contains(credit.FreeText, "INV-2024-042") || !strings.Contains(credit.FreeText, "210000000003139471430009017") {
		t.Errorf("Expected remittance text with both references, got %q", credit.FreeText)
	}

	debit := parsed.Transactions[1]
	if debit.Side != domain.Debit {
		t.Errorf("Expected second transaction to be a debit, got %s", debit.Side)
	}
	// No account-servicer reference anywhere: the transaction id is next
	if debit.UniqueRef != "TX-0002" {
		t.Errorf("Expected transaction id as unique reference, got %q", debit.UniqueRef)
	}
	if debit.InstructionID != "RUN-77-0" {
		t.Errorf("Expected instruction id RUN-77-0, got %q", debit.InstructionID)
	}
	// Amount falls back to the entry level
	if !debit.Amount.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("Expected entry-level amount 100.00, got %s", debit.Amount)
	}
	if debit.Counterparty.Name != "Energie Zurich" {
		t.Errorf("Expected creditor name for a debit, got %q", debit.Counterparty.Name)
	}
	if debit.Counterparty.Address != "Postfach 100, 8022 Zurich" {
		t.Errorf("Expected joined address lines, got %q", debit.Counterparty.Address)
	}
}

func TestParseHashFallbackReference(t *testing.T) {
	payload := `<Document><BkToCstmrStmt><Stmt>
      <Acct><Id><Othr><Id>ACC-LOCAL-9</Id></Othr></Id></Acct>
      <Ntry>
        <Amt Ccy="EUR">42.00</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <BookgDt><Dt>2024-02-01</Dt></BookgDt>
      </Ntry>
    </Stmt></BkToCstmrStmt></Document>`

	parsed, err := camt.Parse([]byte(payload), "EUR")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Meta.AccountID != "ACC-LOCAL-9" {
		t.Errorf("Expected alternate account id, got %q", parsed.Meta.AccountID)
	}
	if parsed.Meta.StatementID != "n/a" {
		t.Errorf("Expected statement id fallback n/a, got %q", parsed.Meta.StatementID)
	}
	if len(parsed.Transactions) != 1 {
		t.Fatalf("Expected 1 implicit transaction, got %d", len(parsed.Transactions))
	}
	ref := parsed.Transactions[0].UniqueRef
	if len(ref) != 32 {
		t.Errorf("Expected 32-char hash reference, got %q", ref)
	}

	// Same payload hashes to the same reference
	again, err := camt.Parse([]byte(payload), "EUR")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if again.Transactions[0].UniqueRef != ref {
		t.Error("Expected hash fallback to be deterministic")
	}
}

func TestParseCurrencyFallsBackToHomeCurrency(t *testing.T) {
	payload := `<Document><BkToCstmrStmt><Stmt>
      <Acct><Id><IBAN>CH0000000000000000000</IBAN></Id></Acct>
    </Stmt></BkToCstmrStmt></Document>`

	parsed, err := camt.Parse([]byte(payload), "CHF")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Meta.Currency != "CHF" {
		t.Errorf("Expected home currency fallback, got %q", parsed.Meta.Currency)
	}
}

func TestParseMissingMandatoryFields(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{
			name: "missing amount",
			payload: `<Document><BkToCstmrStmt><Stmt><Ntry>
                <CdtDbtInd>CRDT</CdtDbtInd>
                <BookgDt><Dt>2024-02-01</Dt></BookgDt>
              </Ntry></Stmt></BkToCstmrStmt></Document>`,
		},
		{
			name: "missing direction",
			payload: `<Document><BkToCstmrStmt><Stmt><Ntry>
                <Amt Ccy="CHF">10.00</Amt>
                <BookgDt><Dt>2024-02-01</Dt></BookgDt>
              </Ntry></Stmt></BkToCstmrStmt></Document>`,
		},
		{
			name: "missing date",
			payload: `<Document><BkToCstmrStmt><Stmt><Ntry>
                <Amt Ccy="CHF">10.00</Amt>
                <CdtDbtInd>CRDT</CdtDbtInd>
              </Ntry></Stmt></BkToCstmrStmt></Document>`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := camt.Parse([]byte(tc.payload), "CHF")
			var me *domain.MalformedPayloadError
			if !errors.As(err, &me) {
				t.Fatalf("Expected MalformedPayloadError, got %v", err)
			}
		})
	}
}
