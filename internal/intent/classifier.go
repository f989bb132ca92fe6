// Package intent maps a raw utterance onto tool-intent categories using
// curated keyword lexicons. It is a deliberately simple heuristic layer kept
// behind one function so it can later be swapped for a model-based classifier
// without touching router or dispatcher logic.
package intent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category tags one tool-intent kind detected in an utterance.
type Category string

const (
	CategoryWeather   Category = "weather"
	CategoryAddress   Category = "address"
	CategoryPOI       Category = "poi"
	CategoryTrain     Category = "train"
	CategoryTime      Category = "time"
	CategoryDate      Category = "date"
	CategoryKnowledge Category = "knowledge"
	CategoryFile      Category = "file"
	CategoryOrder     Category = "order"
)

// Set is the group of categories matched for one utterance.
type Set map[Category]bool

// Has reports whether the set contains c.
func (s Set) Has(c Category) bool { return s[c] }

// Lexicon holds per-category trigger terms plus the simple-query shortcut
// list consulted by the router.
type Lexicon struct {
	Weather   []string `yaml:"weather"`
	Address   []string `yaml:"address"`
	POI       []string `yaml:"poi"`
	Train     []string `yaml:"train"`
	Time      []string `yaml:"time"`
	Date      []string `yaml:"date"`
	Knowledge []string `yaml:"knowledge"`
	File      []string `yaml:"file"`
	Order     []string `yaml:"order"`
	Simple    []string `yaml:"simple"`
}

// DefaultLexicon returns the built-in trigger terms.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Weather:   []string{"天气", "温度", "气温", "下雨", "晴天", "weather", "temperature", "climate"},
		Address:   []string{"地址", "位置", "在哪里", "怎么去", "导航", "地图", "address", "location", "map"},
		POI:       []string{"附近", "找", "搜索", "推荐", "哪里有", "poi", "search"},
		Train:     []string{"火车票", "车票", "高铁", "动车", "火车", "train", "ticket", "12306"},
		Time:      []string{"时间", "几点", "现在几点", "time"},
		Date:      []string{"今天几号", "几号", "日期", "星期", "date"},
		Knowledge: []string{"常见问题", "faq", "帮助", "怎么", "如何", "是什么", "知识库", "文档", "说明", "help", "knowledge"},
		File:      []string{"日志", "文件", "查看", "读取", "log", "file"},
		Order:     []string{"订单", "order"},
		Simple:    []string{"时间", "几点", "现在", "今天", "日期", "几号", "星期", "time", "date"},
	}
}

// LoadLexicon reads a YAML lexicon file; empty category lists fall back to
// the built-in terms.
func LoadLexicon(path string) (Lexicon, error) {
	lex := DefaultLexicon()
	data, err := os.ReadFile(path)
	if err != nil {
		return lex, fmt.Errorf("read lexicon file: %w", err)
	}
	var loaded Lexicon
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return lex, fmt.Errorf("parse lexicon file: %w", err)
	}
	merge := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	merge(&lex.Weather, loaded.Weather)
	merge(&lex.Address, loaded.Address)
	merge(&lex.POI, loaded.POI)
	merge(&lex.Train, loaded.Train)
	merge(&lex.Time, loaded.Time)
	merge(&lex.Date, loaded.Date)
	merge(&lex.Knowledge, loaded.Knowledge)
	merge(&lex.File, loaded.File)
	merge(&lex.Order, loaded.Order)
	merge(&lex.Simple, loaded.Simple)
	return lex, nil
}

// Classifier tests utterances against the lexicon.
type Classifier struct {
	lex Lexicon
}

// NewClassifier builds a classifier over the given lexicon.
func NewClassifier(lex Lexicon) *Classifier {
	return &Classifier{lex: lex}
}

// Classify returns every category whose lexicon matches the utterance.
// Matching is case-insensitive substring containment. Temporal categories are
// suppressed when weather intent is present in the same utterance, so that
// "现在天气怎么样" is not misread as a bare time lookup.
func (c *Classifier) Classify(utterance string) Set {
	text := strings.ToLower(utterance)
	tags := make(Set)

	if matchAny(text, c.lex.Weather) {
		tags[CategoryWeather] = true
	}
	if matchAny(text, c.lex.Address) {
		tags[CategoryAddress] = true
	}
	if matchAny(text, c.lex.POI) {
		tags[CategoryPOI] = true
	}
	if matchAny(text, c.lex.Train) {
		tags[CategoryTrain] = true
	}
	if matchAny(text, c.lex.Knowledge) {
		tags[CategoryKnowledge] = true
	}
	if matchAny(text, c.lex.File) {
		tags[CategoryFile] = true
	}
	if matchAny(text, c.lex.Order) {
		tags[CategoryOrder] = true
	}

	if !tags[CategoryWeather] {
		if matchAny(text, c.lex.Date) {
			tags[CategoryDate] = true
		} else if matchAny(text, c.lex.Time) {
			tags[CategoryTime] = true
		}
	}

	return tags
}

// IsSimpleQuery reports whether the utterance matches the simple
// factual-query shortcut lexicon the router uses to skip analysis.
func (c *Classifier) IsSimpleQuery(utterance string) bool {
	return matchAny(strings.ToLower(utterance), c.lex.Simple)
}

func matchAny(text string, terms []string) bool {
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
