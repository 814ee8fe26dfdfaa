package media

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"code.sajari.com/docconv"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
)

var _ core.SlideExtractor = (*DeckExtractor)(nil)

var slideFileRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// DeckExtractor reads slide decks. .pptx files are opened directly so slide
// boundaries and speaker notes survive; everything else goes through docconv
// and is split into one slide per page.
type DeckExtractor struct {
	useReadability bool
	log            *logger.Logger
}

func NewDeckExtractor(useReadability bool, log *logger.Logger) *DeckExtractor {
	return &DeckExtractor{
		useReadability: useReadability,
		log:            log.With("service", "DeckExtractor"),
	}
}

func (e *DeckExtractor) ExtractText(ctx context.Context, deckPath string) (*models.SlideDeck, error) {
	const op = "extract slides"

	var (
		deck *models.SlideDeck
		err  error
	)
	if strings.EqualFold(filepath.Ext(deckPath), ".pptx") {
		deck, err = e.extractPptx(ctx, deckPath)
	} else {
		deck, err = e.extractDocconv(deckPath)
	}
	if err != nil {
		return nil, core.NewError(core.CodeSlideExtractionFailed, op, err)
	}

	e.log.Debug("deck extracted", "path", deckPath, "slides", len(deck.Slides), "notes", len(deck.Notes))
	return deck, nil
}

func (e *DeckExtractor) extractDocconv(deckPath string) (*models.SlideDeck, error) {
	f, err := os.Open(deckPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := docconv.Convert(f, docconv.MimeTypeByExtension(deckPath), e.useReadability)
	if err != nil {
		return nil, fmt.Errorf("docconv: %w", err)
	}

	deck := &models.SlideDeck{Slides: []models.Slide{}, Notes: []models.SlideNote{}}
	// pdftotext separates pages with form feeds.
	for _, page := range strings.Split(res.Body, "\f") {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		title, content, _ := strings.Cut(page, "\n")
		deck.Slides = append(deck.Slides, models.Slide{
			SlideNumber: len(deck.Slides) + 1,
			Title:       strings.TrimSpace(title),
			Content:     strings.TrimSpace(content),
		})
	}
	return deck, nil
}

type slideFile struct {
	number int
	name   string
}

func (e *DeckExtractor) extractPptx(ctx context.Context, deckPath string) (*models.SlideDeck, error) {
	zr, err := zip.OpenReader(deckPath)
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	var slides []slideFile
	for _, f := range zr.File {
		files[f.Name] = f
		if m := slideFileRe.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slideFile{number: n, name: f.Name})
		}
	}
	if len(slides) == 0 {
		return nil, fmt.Errorf("no slides found in %s", filepath.Base(deckPath))
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	parsedSlides := make([]models.Slide, len(slides))
	parsedNotes := make([]string, len(slides))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sf := range slides {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			shapes, err := readShapes(files[sf.name])
			if err != nil {
				return fmt.Errorf("slide %d: %w", sf.number, err)
			}
			parsedSlides[i] = slideFromShapes(i+1, shapes)

			notesName := notesTarget(files, sf.name)
			if notesName == "" {
				return nil
			}
			noteShapes, err := readShapes(files[notesName])
			if err != nil {
				return fmt.Errorf("notes for slide %d: %w", sf.number, err)
			}
			parsedNotes[i] = notesFromShapes(noteShapes)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	deck := &models.SlideDeck{Slides: parsedSlides, Notes: []models.SlideNote{}}
	for i, n := range parsedNotes {
		if n != "" {
			deck.Notes = append(deck.Notes, models.SlideNote{SlideNumber: i + 1, Text: n})
		}
	}
	return deck, nil
}

// shape is one <p:sp> element: its placeholder type and text paragraphs.
type shape struct {
	placeholder string
	paragraphs  []string
}

func readShapes(f *zip.File) ([]shape, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return parseShapes(rc)
}

// parseShapes walks a slide or notes part and collects the text of every
// shape. Paragraphs outside a shape (tables, groups) land in an unnamed shape.
func parseShapes(r io.Reader) ([]shape, error) {
	dec := xml.NewDecoder(r)

	var (
		shapes  []shape
		cur     *shape
		loose   shape
		inText  bool
		para    strings.Builder
		inPara  bool
		depthSp int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp":
				depthSp++
				if depthSp == 1 {
					cur = &shape{}
				}
			case "ph":
				if cur != nil {
					cur.placeholder = "body"
					for _, a := range t.Attr {
						if a.Name.Local == "type" {
							cur.placeholder = a.Value
						}
					}
				}
			case "p":
				inPara = true
				para.Reset()
			case "t":
				inText = true
			case "br":
				if inPara {
					para.WriteString(" ")
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if !inPara {
					continue
				}
				inPara = false
				text := strings.TrimSpace(para.String())
				if text == "" {
					continue
				}
				if cur != nil {
					cur.paragraphs = append(cur.paragraphs, text)
				} else {
					loose.paragraphs = append(loose.paragraphs, text)
				}
			case "sp":
				depthSp--
				if depthSp == 0 && cur != nil {
					shapes = append(shapes, *cur)
					cur = nil
				}
			}
		}
	}

	if len(loose.paragraphs) > 0 {
		shapes = append(shapes, loose)
	}
	return shapes, nil
}

func slideFromShapes(number int, shapes []shape) models.Slide {
	s := models.Slide{SlideNumber: number}
	var body []string
	for _, sh := range shapes {
		if s.Title == "" && (sh.placeholder == "title" || sh.placeholder == "ctrTitle") {
			s.Title = strings.Join(sh.paragraphs, " ")
			continue
		}
		body = append(body, sh.paragraphs...)
	}
	s.Content = strings.Join(body, "\n")
	return s
}

func notesFromShapes(shapes []shape) string {
	var lines []string
	for _, sh := range shapes {
		switch sh.placeholder {
		case "sldNum", "sldImg", "hdr", "ftr", "dt":
			continue
		}
		lines = append(lines, sh.paragraphs...)
	}
	return strings.Join(lines, "\n")
}

type relationships struct {
	Items []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// notesTarget resolves the notes part linked from a slide, or "" if none.
func notesTarget(files map[string]*zip.File, slideName string) string {
	dir, file := path.Split(slideName)
	relsFile, ok := files[dir+"_rels/"+file+".rels"]
	if !ok {
		return ""
	}
	rc, err := relsFile.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()

	var rels relationships
	if err := xml.NewDecoder(rc).Decode(&rels); err != nil {
		return ""
	}
	for _, r := range rels.Items {
		if strings.HasSuffix(r.Type, "/notesSlide") {
			target := path.Clean(path.Join(dir, r.Target))
			if _, ok := files[target]; ok {
				return target
			}
		}
	}
	return ""
}
