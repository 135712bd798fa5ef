package search

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/unicode/norm"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
)

// Default classifier configuration values.
const (
	DefaultClassifierCacheSize = 1000
	DefaultMaxQueryLength      = 512
)

// Lexical signals of an exact lookup.
var (
	quotedPattern  = regexp.MustCompile(`“[^”]+”|「[^」]+」|『[^』]+』|"[^"]+"|'[^']+'`)
	titlePattern   = regexp.MustCompile(`《[^《》]+》`)
	statutePattern = regexp.MustCompile(`第[一二三四五六七八九十百千万零〇两0-9]+条|(?i:article)\s*\d+|\d+\s*条`)
	acronymPattern = regexp.MustCompile(`\b[A-Z]{2,}\b`)

	// Longer names first so 劳动合同法 wins over 合同法.
	codeNamePattern = regexp.MustCompile(strings.Join([]string{
		"民事诉讼法", "刑事诉讼法", "行政诉讼法", "劳动合同法", "消费者权益保护法",
		"治安管理处罚法", "道路交通安全法", "个人信息保护法", "反不正当竞争法", "未成年人保护法",
		"著作权法", "商标法", "专利法", "婚姻法", "继承法", "物权法", "侵权责任法", "民法典", "民法总则",
		"劳动法", "合同法", "公司法", "刑法", "宪法", "行政法", "保险法", "票据法", "破产法", "证券法",
	}, "|"))
)

// Lexical signals of an open question or abstraction.
var (
	questionPattern    = regexp.MustCompile(`什么|如何|怎么|怎样|为什么|为何|是否|能否|可否|可以吗|哪些|哪个|多久|多少|吗|呢|\?`)
	englishQuestion    = regexp.MustCompile(`(?i)\b(how|what|why|when|whether|which|explain|meaning|difference)\b`)
	abstractionPattern = regexp.MustCompile(`原则|概念|含义|意义|区别|关系|目的|作用|影响|理解|精神|价值|后果|责任`)
)

// QueryClassifier infers a QueryProfile from lexical features. It makes no
// external calls and is safe for concurrent use. Profiles are cached by
// normalized query.
type QueryClassifier struct {
	cache     *lru.Cache[string, QueryProfile]
	maxLength int
}

// NewQueryClassifier creates a classifier. Non-positive values use defaults.
func NewQueryClassifier(cacheSize, maxLength int) *QueryClassifier {
	if cacheSize <= 0 {
		cacheSize = DefaultClassifierCacheSize
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	cache, _ := lru.New[string, QueryProfile](cacheSize)
	return &QueryClassifier{cache: cache, maxLength: maxLength}
}

// Validate rejects empty, whitespace-only and over-long queries.
func (c *QueryClassifier) Validate(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return lrerrors.InvalidQuery("query is empty").
			WithSuggestion("Ask a question about the law corpus")
	}
	if n := utf8.RuneCountInString(trimmed); n > c.maxLength {
		return lrerrors.InvalidQuery("query is too long").
			WithDetail("length", strconv.Itoa(n)).
			WithDetail("max_length", strconv.Itoa(c.maxLength))
	}
	return nil
}

// Classify returns the profile for query. Empty or over-long queries fail
// with ERR_403_INVALID_QUERY.
func (c *QueryClassifier) Classify(query string) (QueryProfile, error) {
	if err := c.Validate(query); err != nil {
		return QueryProfile{}, err
	}

	normalized := norm.NFKC.String(strings.TrimSpace(query))
	if p, ok := c.cache.Get(normalized); ok {
		return p, nil
	}

	p := ProfileFor(classifyType(normalized))
	c.cache.Add(normalized, p)
	return p, nil
}

func classifyType(query string) QueryType {
	exact := exactSignals(query)
	semantic := semanticSignals(query)

	switch {
	case exact > 0 && exact >= semantic:
		return QueryTypeExact
	case semantic > 0:
		return QueryTypeSemantic
	default:
		return QueryTypeHybrid
	}
}

func exactSignals(query string) int {
	n := 0
	for _, re := range []*regexp.Regexp{quotedPattern, titlePattern, statutePattern, codeNamePattern, acronymPattern} {
		n += len(re.FindAllStringIndex(query, -1))
	}
	return n
}

func semanticSignals(query string) int {
	n := 0
	for _, re := range []*regexp.Regexp{questionPattern, englishQuestion, abstractionPattern} {
		n += len(re.FindAllStringIndex(query, -1))
	}
	return n
}
