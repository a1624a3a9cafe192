package sweep

import (
	"github.com/beevik/etree"
	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/fulmenhq/crxprep/pkg/safeio"
	"github.com/fulmenhq/crxprep/pkg/work"
)

// CountSVGScripts returns the number of script elements in an SVG document.
func CountSVGScripts(data []byte) (int, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return 0, err
	}
	return len(doc.FindElements("//script")), nil
}

// auditSVG only reports. An SVG that cannot be read or parsed is skipped
// with a warning rather than counted as a failed page.
func (s *Sweeper) auditSVG(item *work.WorkItem) work.ExecutionResult {
	data, err := safeio.ReadFileContained(s.root, item.Path)
	if err != nil {
		s.log.Warn("cannot read SVG for script audit", logger.String("file", item.RelPath), logger.Err(err))
		return work.ExecutionResult{Success: true, Skipped: true}
	}

	n, err := CountSVGScripts(data)
	if err != nil {
		s.log.Warn("SVG is not well-formed XML", logger.String("file", item.RelPath), logger.Err(err))
		return work.ExecutionResult{Success: true, Skipped: true}
	}
	if n == 0 {
		return work.ExecutionResult{Success: true, Skipped: true}
	}

	s.mu.Lock()
	s.findings = append(s.findings, SVGFinding{Path: item.RelPath, Scripts: n})
	s.mu.Unlock()
	s.log.Warn("SVG embeds script elements that cannot be externalized",
		logger.String("file", item.RelPath), logger.Int("scripts", n))
	return work.ExecutionResult{Success: true, Skipped: true}
}
