// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
)

// PDF returns a minimal, structurally valid PDF with n blank letter-size pages.
// Cross-reference offsets are exact so strict parsers accept it.
func PDF(n int) []byte {
	if n < 1 {
		n = 1
	}
	var b bytes.Buffer
	// catalog, pages, then (page, content) per page
	total := 2 + 2*n
	offsets := make([]int, total+1)

	b.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	obj := func(id int, body string) {
		offsets[id] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", id, body)
	}

	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")

	var kids bytes.Buffer
	for i := 0; i < n; i++ {
		if i > 0 {
			kids.WriteByte(' ')
		}
		fmt.Fprintf(&kids, "%d 0 R", 3+2*i)
	}
	obj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), n))

	for i := 0; i < n; i++ {
		pageID, contentID := 3+2*i, 4+2*i
		obj(pageID, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Contents %d 0 R >>",
			contentID))
		stream := fmt.Sprintf("%d %d m %d %d l S", 72, 720-i, 300, 720-i)
		obj(contentID, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", total+1)
	b.WriteString("0000000000 65535 f \n")
	for id := 1; id <= total; id++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[id])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xref)
	return b.Bytes()
}

// TSV renders tesseract-style TSV for the given lines of words. Each word is
// 40px wide and each line 30px tall, starting at (10, 10).
func TSV(lines ...[]string) []byte {
	var b bytes.Buffer
	b.WriteString("level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n")
	b.WriteString("1\t1\t0\t0\t0\t0\t0\t0\t2550\t3300\t-1\t\n")
	for li, words := range lines {
		top := 10 + 30*li
		fmt.Fprintf(&b, "4\t1\t1\t1\t%d\t0\t10\t%d\t%d\t20\t-1\t\n", li+1, top, 50*len(words))
		for wi, w := range words {
			left := 10 + 50*wi
			fmt.Fprintf(&b, "5\t1\t1\t1\t%d\t%d\t%d\t%d\t40\t20\t95.5\t%s\n", li+1, wi+1, left, top, w)
		}
	}
	return b.Bytes()
}
