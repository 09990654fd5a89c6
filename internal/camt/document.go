// Package camt parses camt.053 bank statement payloads into normalized
// statement metadata and transaction records.
package camt

import "encoding/xml"

// Document is the root of a camt.053 payload
type Document struct {
	XMLName       xml.Name      `xml:"Document"`
	BkToCstmrStmt BkToCstmrStmt `xml:"BkToCstmrStmt"`
}

// BkToCstmrStmt is the bank-to-customer statement message
type BkToCstmrStmt struct {
	GrpHdr GrpHdr `xml:"GrpHdr"`
	Stmt   []Stmt `xml:"Stmt"`
}

// GrpHdr is the group header
type GrpHdr struct {
	MsgID   string `xml:"MsgId"`
	CreDtTm string `xml:"CreDtTm"`
}

// Stmt is one statement
type Stmt struct {
	ID      string `xml:"Id"`
	CreDtTm string `xml:"CreDtTm"`
	FrToDt  FrToDt `xml:"FrToDt"`
	Acct    Acct   `xml:"Acct"`
	Bal     []Bal  `xml:"Bal"`
	Ntry    []Ntry `xml:"Ntry"`
}

// FrToDt is the reported date range
type FrToDt struct {
	FrDtTm string `xml:"FrDtTm"`
	ToDtTm string `xml:"ToDtTm"`
}

// Acct identifies the account
type Acct struct {
	ID  AcctID `xml:"Id"`
	Ccy string `xml:"Ccy"`
}

// AcctID is the account identifier: IBAN or a bank-local alternate id
type AcctID struct {
	IBAN string `xml:"IBAN"`
	Othr struct {
		ID string `xml:"Id"`
	} `xml:"Othr"`
}

// Bal is one balance record
type Bal struct {
	Tp struct {
		CdOrPrtry struct {
			Cd string `xml:"Cd"`
		} `xml:"CdOrPrtry"`
	} `xml:"Tp"`
	Amt       Amt    `xml:"Amt"`
	CdtDbtInd string `xml:"CdtDbtInd"`
	Dt        struct {
		Dt string `xml:"Dt"`
	} `xml:"Dt"`
}

// Amt is an amount with its currency attribute
type Amt struct {
	Text string `xml:",chardata"`
	Ccy  string `xml:"Ccy,attr"`
}

// Ntry is one statement entry
type Ntry struct {
	NtryRef     string `xml:"NtryRef"`
	Amt         Amt    `xml:"Amt"`
	CdtDbtInd   string `xml:"CdtDbtInd"`
	Sts         string `xml:"Sts"`
	BookgDt     DtRec  `xml:"BookgDt"`
	ValDt       DtRec  `xml:"ValDt"`
	AcctSvcrRef string `xml:"AcctSvcrRef"`
	NtryDtls    struct {
		TxDtls []TxDtls `xml:"TxDtls"`
	} `xml:"NtryDtls"`
	AddtlNtryInf string `xml:"AddtlNtryInf"`
}

// DtRec is a date, delivered either as Dt or DtTm
type DtRec struct {
	Dt   string `xml:"Dt"`
	DtTm string `xml:"DtTm"`
}

// TxDtls is one transaction inside an entry
type TxDtls struct {
	Refs      Refs      `xml:"Refs"`
	Amt       Amt       `xml:"Amt"`
	CdtDbtInd string    `xml:"CdtDbtInd"`
	RltdPties RltdPties `xml:"RltdPties"`
	RmtInf    RmtInf    `xml:"RmtInf"`
}

// Refs carries the transaction references
type Refs struct {
	MsgID       string `xml:"MsgId"`
	AcctSvcrRef string `xml:"AcctSvcrRef"`
	EndToEndID  string `xml:"EndToEndId"`
	TxID        string `xml:"TxId"`
	InstrID     string `xml:"InstrId"`
	PmtInfID    string `xml:"PmtInfId"`
}

// RltdPties carries debtor and creditor
type RltdPties struct {
	Dbtr     PtyID   `xml:"Dbtr"`
	Cdtr     PtyID   `xml:"Cdtr"`
	DbtrAcct PtyAcct `xml:"DbtrAcct"`
	CdtrAcct PtyAcct `xml:"CdtrAcct"`
}

// PtyID is one related party
type PtyID struct {
	Nm      string  `xml:"Nm"`
	PstlAdr PstlAdr `xml:"PstlAdr"`
}

// PtyAcct is a related party's account
type PtyAcct struct {
	ID struct {
		IBAN string `xml:"IBAN"`
	} `xml:"Id"`
}

// PstlAdr is a postal address: structured fields or plain address lines
type PstlAdr struct {
	StrtNm  string   `xml:"StrtNm"`
	BldgNb  string   `xml:"BldgNb"`
	PstCd   string   `xml:"PstCd"`
	TwnNm   string   `xml:"TwnNm"`
	Ctry    string   `xml:"Ctry"`
	AdrLine []string `xml:"AdrLine"`
}

// RmtInf is the remittance information
type RmtInf struct {
	Ustrd []string `xml:"Ustrd"`
	Strd  []Strd   `xml:"Strd"`
}

// Strd is structured remittance information
type Strd struct {
	CdtrRefInf struct {
		Ref string `xml:"Ref"`
	} `xml:"CdtrRefInf"`
}
