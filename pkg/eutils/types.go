// Package eutils decodes NCBI E-utilities response bodies into domain
// records: the efetch PubmedArticleSet XML document and the esearch JSON
// envelope.
package eutils

import "encoding/xml"

// pubmedArticleSet mirrors the efetch XML document root.
type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

// pubmedArticle mirrors a single article subtree. Only the fields the
// domain model needs are mapped; the rest of the document is ignored by the
// decoder.
type pubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    string `xml:"ArticleTitle"`
			Abstract struct {
				Sections []abstractSection `xml:"AbstractText"`
			} `xml:"Abstract"`
			Authors []author `xml:"AuthorList>Author"`
			Journal struct {
				Title   string  `xml:"Title"`
				PubDate wireDat `xml:"JournalIssue>PubDate"`
			} `xml:"Journal"`
			ELocationIDs []eLocationID `xml:"ELocationID"`
			ArticleDate  wireDat       `xml:"ArticleDate"`
		} `xml:"Article"`
		MeshHeadings []struct {
			Descriptor string `xml:"DescriptorName"`
		} `xml:"MeshHeadingList>MeshHeading"`
		Keywords []string `xml:"KeywordList>Keyword"`
	} `xml:"MedlineCitation"`
}

// abstractSection is one AbstractText element. Structured abstracts carry a
// Label attribute ("BACKGROUND", "METHODS", ...); plain abstracts have a
// single unlabeled section.
type abstractSection struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

type author struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	Initials       string `xml:"Initials"`
	CollectiveName string `xml:"CollectiveName"`
}

// eLocationID carries article-level identifiers such as the DOI.
type eLocationID struct {
	IDType  string `xml:"EIdType,attr"`
	ValidYN string `xml:"ValidYN,attr"`
	Value   string `xml:",chardata"`
}

// wireDat is a loosely-typed calendar date as it appears in the document:
// all three components are free text and any of them may be missing.
type wireDat struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

// esearchEnvelope mirrors the esearch retmode=json response. Count and
// RetMax are decimal strings in the NCBI payload.
type esearchEnvelope struct {
	Result struct {
		Count  string   `json:"count"`
		RetMax string   `json:"retmax"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}
