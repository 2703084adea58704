package xslt_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
	"github.com/midbel/angle/xslt"
)

const header = `<xsl:stylesheet version="1.0"
	xmlns:xsl="http://www.w3.org/1999/XSL/Transform"
	xmlns:func="http://exslt.org/functions"
	xmlns:exsl="http://exslt.org/common"
	xmlns:my="urn:my"
	xmlns:ext="urn:ext"
	extension-element-prefixes="ext"
	exclude-result-prefixes="func exsl my">`

const items = `<root><item id="a" price="3">one</item><item id="b" price="1">two</item><item id="c" price="2">three</item></root>`

func stylesheet(body string) string {
	return header + body + "</xsl:stylesheet>"
}

type TestCase struct {
	Name    string
	Sheet   string
	Doc     string
	Want    string
	Options []xslt.Option
	Failed  bool
	Err     error
}

func TestConditional(t *testing.T) {
	tests := []TestCase{
		{
			Name:  "if/test-true",
			Sheet: `<xsl:template match="/"><out><xsl:if test="count(//item) = 3">yes</xsl:if></out></xsl:template>`,
			Want:  "<out>yes</out>",
		},
		{
			Name:  "if/test-false",
			Sheet: `<xsl:template match="/"><out><xsl:if test="count(//item) = 2">yes</xsl:if></out></xsl:template>`,
			Want:  "<out/>",
		},
		{
			Name: "choose/basic",
			Sheet: `<xsl:template match="/"><out><xsl:choose>
				<xsl:when test="false()">a</xsl:when>
				<xsl:when test="true()">b</xsl:when>
				<xsl:otherwise>c</xsl:otherwise>
			</xsl:choose></out></xsl:template>`,
			Want: "<out>b</out>",
		},
		{
			Name: "choose/otherwise",
			Sheet: `<xsl:template match="/"><out><xsl:choose>
				<xsl:when test="root/missing">a</xsl:when>
				<xsl:otherwise>c</xsl:otherwise>
			</xsl:choose></out></xsl:template>`,
			Want: "<out>c</out>",
		},
		{
			Name: "choose/no-when",
			Sheet: `<xsl:template match="/"><out><xsl:choose>
				<xsl:otherwise>c</xsl:otherwise>
			</xsl:choose></out></xsl:template>`,
			Failed: true,
			Err:    xslt.ErrChooseEmpty,
		},
	}
	runTest(t, tests)
}

func TestValueOf(t *testing.T) {
	tests := []TestCase{
		{
			Name:  "value-of",
			Sheet: `<xsl:template match="/"><out><xsl:value-of select="root/item[2]"/></out></xsl:template>`,
			Want:  "<out>two</out>",
		},
		{
			Name:  "value-of/empty",
			Sheet: `<xsl:template match="/"><out><xsl:value-of select="root/missing"/></out></xsl:template>`,
			Want:  "<out/>",
		},
		{
			Name:  "value-of/number",
			Sheet: `<xsl:template match="/"><out><xsl:value-of select="sum(//@price) div 2"/></out></xsl:template>`,
			Want:  "<out>3</out>",
		},
		{
			Name:   "value-of/select-error",
			Sheet:  `<xsl:template match="/"><out><xsl:value-of select="unknown(.)"/></out></xsl:template>`,
			Failed: true,
		},
		{
			Name:  "current",
			Sheet: `<xsl:template match="/"><out><xsl:for-each select="root/item"><xsl:value-of select="count(../item[@price &lt; current()/@price])"/></xsl:for-each></out></xsl:template>`,
			Want:  "<out>201</out>",
		},
		{
			Name:  "generate-id",
			Sheet: `<xsl:template match="/"><out><xsl:value-of select="concat(generate-id(root) = generate-id(root), generate-id(root) = generate-id(root/item))"/></out></xsl:template>`,
			Want:  "<out>truefalse</out>",
		},
		{
			Name:  "system-property",
			Sheet: `<xsl:template match="/"><out><xsl:value-of select="system-property('xsl:version')"/></out></xsl:template>`,
			Want:  "<out>1</out>",
		},
		{
			Name:  "function-available",
			Sheet: `<xsl:template match="/"><out><xsl:value-of select="concat(function-available('key'), function-available('exsl:node-set'), function-available('my:none'))"/></out></xsl:template>`,
			Want:  "<out>truetruefalse</out>",
		},
	}
	runTest(t, tests)
}

func TestForEach(t *testing.T) {
	tests := []TestCase{
		{
			Name:  "foreach/basic",
			Sheet: `<xsl:template match="/"><out><xsl:for-each select="root/item"><v><xsl:value-of select="position()"/>/<xsl:value-of select="last()"/></v></xsl:for-each></out></xsl:template>`,
			Want:  "<out><v>1/3</v><v>2/3</v><v>3/3</v></out>",
		},
		{
			Name: "foreach/sort-number",
			Sheet: `<xsl:template match="/"><out><xsl:for-each select="root/item">
				<xsl:sort select="@price" data-type="number"/>
				<v><xsl:value-of select="."/></v>
			</xsl:for-each></out></xsl:template>`,
			Want: "<out><v>two</v><v>three</v><v>one</v></out>",
		},
		{
			Name: "foreach/sort-text",
			Sheet: `<xsl:template match="/"><out><xsl:for-each select="root/item">
				<xsl:sort select="."/>
				<v><xsl:value-of select="@id"/></v>
			</xsl:for-each></out></xsl:template>`,
			Want: "<out><v>a</v><v>c</v><v>b</v></out>",
		},
		{
			Name: "foreach/sort-descending",
			Sheet: `<xsl:template match="/"><out><xsl:for-each select="root/item">
				<xsl:sort select="@price" data-type="number" order="descending"/>
				<xsl:value-of select="@id"/>
			</xsl:for-each></out></xsl:template>`,
			Want: "<out>acb</out>",
		},
		{
			Name:  "foreach/empty",
			Sheet: `<xsl:template match="/"><out><xsl:for-each select="root/missing"><v/></xsl:for-each></out></xsl:template>`,
			Want:  "<out/>",
		},
		{
			Name:   "foreach/not-node-set",
			Sheet:  `<xsl:template match="/"><out><xsl:for-each select="'text'"><v/></xsl:for-each></out></xsl:template>`,
			Failed: true,
		},
	}
	runTest(t, tests)
}

func TestTemplates(t *testing.T) {
	tests := []TestCase{
		{
			Name: "apply-templates",
			Sheet: `<xsl:template match="/"><out><xsl:apply-templates select="root/item"/></out></xsl:template>
			<xsl:template match="item"><i><xsl:value-of select="@id"/></i></xsl:template>`,
			Want: "<out><i>a</i><i>b</i><i>c</i></out>",
		},
		{
			Name:  "builtin-rules",
			Sheet: `<xsl:template match="item[@id='b']">B</xsl:template>`,
			Want:  "oneBthree",
		},
		{
			Name: "priority",
			Sheet: `<xsl:template match="item">1</xsl:template>
			<xsl:template match="root/item">2</xsl:template>`,
			Want: "222",
		},
		{
			Name: "priority/explicit",
			Sheet: `<xsl:template match="item" priority="1">1</xsl:template>
			<xsl:template match="root/item">2</xsl:template>`,
			Want: "111",
		},
		{
			Name: "priority/last-wins",
			Sheet: `<xsl:template match="item">1</xsl:template>
			<xsl:template match="item">2</xsl:template>`,
			Want: "222",
		},
		{
			Name: "mode",
			Sheet: `<xsl:template match="/"><out><xsl:apply-templates select="root/item" mode="m"/></out></xsl:template>
			<xsl:template match="item" mode="m">[<xsl:value-of select="@id"/>]</xsl:template>
			<xsl:template match="item">x</xsl:template>`,
			Want: "<out>[a][b][c]</out>",
		},
		{
			Name: "apply-templates/with-param",
			Sheet: `<xsl:template match="/"><out><xsl:apply-templates select="root/item"><xsl:with-param name="sep" select="'-'"/></xsl:apply-templates></out></xsl:template>
			<xsl:template match="item"><xsl:param name="sep" select="'+'"/><xsl:value-of select="concat(@id, $sep)"/></xsl:template>`,
			Want: "<out>a-b-c-</out>",
		},
		{
			Name: "apply-templates/sort",
			Sheet: `<xsl:template match="/"><out><xsl:apply-templates select="root/item"><xsl:sort select="@price"/></xsl:apply-templates></out></xsl:template>
			<xsl:template match="item"><xsl:value-of select="@id"/></xsl:template>`,
			Want: "<out>bca</out>",
		},
		{
			Name: "identity",
			Sheet: `<xsl:template match="@*|node()"><xsl:copy><xsl:apply-templates select="@*|node()"/></xsl:copy></xsl:template>
			<xsl:template match="@price"/>`,
			Want: `<root><item id="a">one</item><item id="b">two</item><item id="c">three</item></root>`,
		},
		{
			Name:  "copy-of",
			Sheet: `<xsl:template match="/"><out><xsl:copy-of select="root/item[@id='c']"/></out></xsl:template>`,
			Want:  `<out><item id="c" price="2">three</item></out>`,
		},
	}
	runTest(t, tests)
}

func TestCallTemplate(t *testing.T) {
	tests := []TestCase{
		{
			Name: "call-template/params",
			Sheet: `<xsl:template match="/"><out><xsl:call-template name="greet">
				<xsl:with-param name="who" select="'world'"/>
				<xsl:with-param name="unused" select="1"/>
			</xsl:call-template></out></xsl:template>
			<xsl:template name="greet">
				<xsl:param name="who" select="'nobody'"/>
				<xsl:param name="punct">!</xsl:param>
				<xsl:text>hello </xsl:text><xsl:value-of select="$who"/><xsl:value-of select="$punct"/>
			</xsl:template>`,
			Want: "<out>hello world!</out>",
		},
		{
			Name: "call-template/default",
			Sheet: `<xsl:template match="/"><out><xsl:call-template name="greet"/></out></xsl:template>
			<xsl:template name="greet"><xsl:param name="who" select="'nobody'"/><xsl:value-of select="$who"/></xsl:template>`,
			Want: "<out>nobody</out>",
		},
		{
			Name: "call-template/recursive",
			Sheet: `<xsl:template match="/"><out><xsl:call-template name="count"><xsl:with-param name="n" select="3"/></xsl:call-template></out></xsl:template>
			<xsl:template name="count">
				<xsl:param name="n"/>
				<xsl:if test="$n &gt; 0">
					<xsl:value-of select="$n"/>
					<xsl:call-template name="count"><xsl:with-param name="n" select="$n - 1"/></xsl:call-template>
				</xsl:if>
			</xsl:template>`,
			Want: "<out>321</out>",
		},
		{
			Name: "call-template/context",
			Sheet: `<xsl:template match="item"><xsl:call-template name="id"/></xsl:template>
			<xsl:template name="id"><xsl:value-of select="@id"/></xsl:template>`,
			Want: "abc",
		},
		{
			Name: "variable/scope",
			Sheet: `<xsl:variable name="x" select="'global'"/>
			<xsl:template match="/"><out>
				<xsl:if test="true()"><xsl:variable name="x" select="'local'"/><xsl:value-of select="$x"/></xsl:if>
				<xsl:value-of select="$x"/>
			</out></xsl:template>`,
			Want: "<out>localglobal</out>",
		},
		{
			Name: "variable/global-order",
			Sheet: `<xsl:variable name="b" select="$a + 1"/>
			<xsl:variable name="a" select="1"/>
			<xsl:template match="/"><out><xsl:value-of select="$b"/></out></xsl:template>`,
			Want: "<out>2</out>",
		},
		{
			Name: "variable/self-reference",
			Sheet: `<xsl:variable name="a" select="$a"/>
			<xsl:template match="/"><out><xsl:value-of select="$a"/></out></xsl:template>`,
			Failed: true,
			Err:    xslt.ErrSelfReference,
		},
		{
			Name: "variable/fragment",
			Sheet: `<xsl:template match="/"><xsl:variable name="tree"><a>1</a><a>2</a></xsl:variable>
			<out><xsl:value-of select="$tree"/>-<xsl:copy-of select="$tree"/></out></xsl:template>`,
			Want: "<out>12-<a>1</a><a>2</a></out>",
		},
		{
			Name: "variable/fragment-as-node-set",
			Sheet: `<xsl:template match="/"><xsl:variable name="tree"><a>1</a><a>2</a></xsl:variable>
			<out><xsl:value-of select="count($tree/a)"/></out></xsl:template>`,
			Failed: true,
		},
	}
	runTest(t, tests)
}

func TestInstructions(t *testing.T) {
	tests := []TestCase{
		{
			Name:  "element",
			Sheet: `<xsl:template match="/"><xsl:element name="{local-name(root)}x"><xsl:attribute name="n">v</xsl:attribute></xsl:element></xsl:template>`,
			Want:  `<rootx n="v"/>`,
		},
		{
			Name:  "element/namespace",
			Sheet: `<xsl:template match="/"><xsl:element name="p:doc" namespace="urn:doc"/></xsl:template>`,
			Want:  `<p:doc xmlns:p="urn:doc"/>`,
		},
		{
			Name:  "element/invalid-name",
			Sheet: `<xsl:template match="/"><out><xsl:element name="1x">content</xsl:element></out></xsl:template>`,
			Want:  `<out>content</out>`,
		},
		{
			Name:  "attribute/after-child",
			Sheet: `<xsl:template match="/"><out><child/><xsl:attribute name="late">1</xsl:attribute></out></xsl:template>`,
			Want:  `<out><child/></out>`,
		},
		{
			Name:  "attribute/avt",
			Sheet: `<xsl:template match="item"><i id="{@id}-{{x}}"/></xsl:template>`,
			Want:  `<i id="a-{x}"/><i id="b-{x}"/><i id="c-{x}"/>`,
		},
		{
			Name:  "comment",
			Sheet: `<xsl:template match="/"><out><xsl:comment>a--b-</xsl:comment></out></xsl:template>`,
			Want:  `<out><!--a- -b- --></out>`,
		},
		{
			Name:  "processing-instruction",
			Sheet: `<xsl:template match="/"><out><xsl:processing-instruction name="pi">x?>y</xsl:processing-instruction></out></xsl:template>`,
			Want:  `<out><?pi x? >y?></out>`,
		},
		{
			Name:  "processing-instruction/invalid",
			Sheet: `<xsl:template match="/"><out><xsl:processing-instruction name="xml">x</xsl:processing-instruction></out></xsl:template>`,
			Want:  `<out/>`,
		},
		{
			Name: "text",
			Sheet: `<xsl:template match="/"><out>
				<xsl:text>  a  </xsl:text>
			</out></xsl:template>`,
			Want: `<out>  a  </out>`,
		},
		{
			Name: "attribute-set",
			Sheet: `<xsl:attribute-set name="s"><xsl:attribute name="x">1</xsl:attribute><xsl:attribute name="y">1</xsl:attribute></xsl:attribute-set>
			<xsl:template match="/"><out xsl:use-attribute-sets="s" y="2"/></xsl:template>`,
			Want: `<out x="1" y="2"/>`,
		},
		{
			Name: "attribute-set/nested",
			Sheet: `<xsl:attribute-set name="a" use-attribute-sets="b"><xsl:attribute name="x">a</xsl:attribute></xsl:attribute-set>
			<xsl:attribute-set name="b"><xsl:attribute name="x">b</xsl:attribute><xsl:attribute name="z">b</xsl:attribute></xsl:attribute-set>
			<xsl:template match="/"><xsl:element name="out" use-attribute-sets="a"/></xsl:template>`,
			Want: `<out x="a" z="b"/>`,
		},
		{
			Name: "attribute-set/recursion",
			Sheet: `<xsl:attribute-set name="a" use-attribute-sets="b"><xsl:attribute name="x">1</xsl:attribute></xsl:attribute-set>
			<xsl:attribute-set name="b" use-attribute-sets="a"/>
			<xsl:template match="/"><out xsl:use-attribute-sets="a"/></xsl:template>`,
			Failed: true,
			Err:    xslt.ErrAttributeSetRecursion,
		},
		{
			Name: "namespace-alias",
			Sheet: `<xsl:namespace-alias stylesheet-prefix="my" result-prefix="ext"/>
			<xsl:template match="/"><my:out/></xsl:template>`,
			Want: `<ext:out xmlns:ext="urn:ext"/>`,
		},
	}
	runTest(t, tests)
}

func TestNumber(t *testing.T) {
	tests := []TestCase{
		{
			Name:  "number/single",
			Sheet: `<xsl:template match="item"><xsl:number format="(a) "/></xsl:template>`,
			Want:  "(a) (b) (c) ",
		},
		{
			Name:  "number/value",
			Sheet: `<xsl:template match="/"><out><xsl:number value="1234" grouping-separator="," grouping-size="3"/></out></xsl:template>`,
			Want:  "<out>1,234</out>",
		},
		{
			Name:  "number/roman",
			Sheet: `<xsl:template match="/"><out><xsl:number value="1999" format="I"/></out></xsl:template>`,
			Want:  "<out>MCMXCIX</out>",
		},
		{
			Name:  "number/any",
			Sheet: `<xsl:template match="item"><xsl:number level="any" count="item|root" format="1."/></xsl:template>`,
			Want:  "2.3.4.",
		},
		{
			Name:  "format-number",
			Sheet: `<xsl:template match="/"><out><xsl:value-of select="format-number(1234.5, '#,##0.00')"/></out></xsl:template>`,
			Want:  "<out>1,234.50</out>",
		},
		{
			Name: "format-number/named",
			Sheet: `<xsl:decimal-format name="eu" decimal-separator="," grouping-separator="."/>
			<xsl:template match="/"><out><xsl:value-of select="format-number(-1234.5, '#.##0,0', 'eu')"/></out></xsl:template>`,
			Want: "<out>-1.234,5</out>",
		},
		{
			Name:  "format-number/percent",
			Sheet: `<xsl:template match="/"><out><xsl:value-of select="format-number(0.25, '0%')"/></out></xsl:template>`,
			Want:  "<out>25%</out>",
		},
		{
			Name:   "format-number/invalid-pattern",
			Sheet:  `<xsl:template match="/"><out><xsl:value-of select="format-number(1, '0.0.0')"/></out></xsl:template>`,
			Failed: true,
		},
	}
	runTest(t, tests)
}

func TestKeys(t *testing.T) {
	tests := []TestCase{
		{
			Name: "key",
			Sheet: `<xsl:key name="byid" match="item" use="@id"/>
			<xsl:template match="/"><out><xsl:value-of select="key('byid', 'b')"/></out></xsl:template>`,
			Want: "<out>two</out>",
		},
		{
			Name: "key/node-set",
			Sheet: `<xsl:key name="byid" match="item" use="@id"/>
			<xsl:template match="/"><out><xsl:value-of select="count(key('byid', root/item/@id))"/></out></xsl:template>`,
			Want: "<out>3</out>",
		},
		{
			Name: "key/missing",
			Sheet: `<xsl:key name="byid" match="item" use="@id"/>
			<xsl:template match="/"><out><xsl:value-of select="count(key('byid', 'z'))"/></out></xsl:template>`,
			Want: "<out>0</out>",
		},
		{
			Name:   "key/undefined",
			Sheet:  `<xsl:template match="/"><out><xsl:value-of select="key('none', 'z')"/></out></xsl:template>`,
			Failed: true,
			Err:    xslt.ErrUndefined,
		},
	}
	runTest(t, tests)
}

func TestFunctions(t *testing.T) {
	tests := []TestCase{
		{
			Name: "func/call",
			Sheet: `<func:function name="my:double"><xsl:param name="x"/><func:result select="$x * 2"/></func:function>
			<xsl:template match="/"><out><xsl:value-of select="my:double(21)"/></out></xsl:template>`,
			Want: "<out>42</out>",
		},
		{
			Name: "func/recursive",
			Sheet: `<func:function name="my:fact">
				<xsl:param name="n"/>
				<xsl:choose>
					<xsl:when test="$n &lt;= 1"><func:result select="1"/></xsl:when>
					<xsl:otherwise><func:result select="$n * my:fact($n - 1)"/></xsl:otherwise>
				</xsl:choose>
			</func:function>
			<xsl:template match="/"><out><xsl:value-of select="my:fact(5)"/></out></xsl:template>`,
			Want: "<out>120</out>",
		},
		{
			Name: "func/no-result",
			Sheet: `<func:function name="my:none"><out>ignored</out></func:function>
			<xsl:template match="/"><out><xsl:value-of select="concat('[', my:none(), ']')"/></out></xsl:template>`,
			Want: "<out>[]</out>",
		},
		{
			Name: "func/too-many-args",
			Sheet: `<func:function name="my:one"><func:result select="1"/></func:function>
			<xsl:template match="/"><out><xsl:value-of select="my:one(1)"/></out></xsl:template>`,
			Failed: true,
			Err:    xpath.ErrArgument,
		},
		{
			Name: "func/duplicate-result",
			Sheet: `<func:function name="my:f"><func:result select="1"/><func:result select="2"/></func:function>
			<xsl:template match="/"><out/></xsl:template>`,
			Failed: true,
			Err:    xslt.ErrDuplicateResult,
		},
		{
			Name: "exsl/node-set",
			Sheet: `<xsl:template match="/"><xsl:variable name="tree"><a>1</a><a>2</a></xsl:variable>
			<out><xsl:value-of select="count(exsl:node-set($tree)/a)"/></out></xsl:template>`,
			Want: "<out>2</out>",
		},
		{
			Name:  "exsl/object-type",
			Sheet: `<xsl:template match="/"><out><xsl:value-of select="exsl:object-type(1)"/></out></xsl:template>`,
			Want:  "<out>number</out>",
		},
	}
	runTest(t, tests)
}

func TestErrors(t *testing.T) {
	tests := []TestCase{
		{
			Name:   "apply-imports/no-template",
			Sheet:  `<xsl:template match="/"><xsl:for-each select="root"><xsl:apply-imports/></xsl:for-each></xsl:template>`,
			Failed: true,
			Err:    xslt.ErrNoTemplateRule,
		},
		{
			Name:   "message/terminate",
			Sheet:  `<xsl:template match="/"><xsl:message terminate="yes">stop</xsl:message><out/></xsl:template>`,
			Failed: true,
			Err:    xslt.ErrTerminate,
		},
		{
			Name:   "call-template/undefined",
			Sheet:  `<xsl:template match="/"><xsl:call-template name="missing"/></xsl:template>`,
			Failed: true,
			Err:    xslt.ErrUndefined,
		},
		{
			Name:   "variable/undefined",
			Sheet:  `<xsl:template match="/"><xsl:value-of select="$missing"/></xsl:template>`,
			Failed: true,
			Err:    xslt.ErrUndefined,
		},
		{
			Name:   "template/no-match",
			Sheet:  `<xsl:template><out/></xsl:template>`,
			Failed: true,
			Err:    xslt.ErrInvalid,
		},
		{
			Name:   "extension/no-handler",
			Sheet:  `<xsl:template match="/"><out><ext:hello/></out></xsl:template>`,
			Failed: true,
			Err:    xslt.ErrExtension,
		},
		{
			Name:  "extension/fallback",
			Sheet: `<xsl:template match="/"><out><ext:hello><xsl:fallback>fb</xsl:fallback></ext:hello></out></xsl:template>`,
			Want:  "<out>fb</out>",
		},
		{
			Name:    "start/unknown-mode",
			Sheet:   `<xsl:template match="/" mode="main"><out/></xsl:template>`,
			Options: []xslt.Option{xslt.WithMode("mian")},
			Failed:  true,
			Err:     xslt.ErrUndefined,
		},
	}
	runTest(t, tests)
}

func TestOptions(t *testing.T) {
	sheet := `<xsl:param name="who" select="'nobody'"/>
	<xsl:param name="my:n" select="0"/>
	<xsl:template match="/"><out><xsl:value-of select="concat($who, $my:n)"/></out></xsl:template>
	<xsl:template match="/" mode="m"><out>mode</out></xsl:template>
	<xsl:template name="main"><out>main</out></xsl:template>`
	tests := []TestCase{
		{
			Name:  "param/default",
			Sheet: sheet,
			Want:  "<out>nobody0</out>",
		},
		{
			Name:    "param/string",
			Sheet:   sheet,
			Options: []xslt.Option{xslt.WithStringParam("who", "world")},
			Want:    "<out>world0</out>",
		},
		{
			Name:    "param/namespace",
			Sheet:   sheet,
			Options: []xslt.Option{xslt.WithParam("{urn:my}n", xpath.Number(7))},
			Want:    "<out>nobody7</out>",
		},
		{
			Name:    "param/unknown",
			Sheet:   sheet,
			Options: []xslt.Option{xslt.WithStringParam("other", "x")},
			Want:    "<out>nobody0</out>",
		},
		{
			Name:    "mode",
			Sheet:   sheet,
			Options: []xslt.Option{xslt.WithMode("m")},
			Want:    "<out>mode</out>",
		},
		{
			Name:    "template",
			Sheet:   sheet,
			Options: []xslt.Option{xslt.WithTemplate("main")},
			Want:    "<out>main</out>",
		},
		{
			Name:    "template/unknown",
			Sheet:   sheet,
			Options: []xslt.Option{xslt.WithTemplate("mian")},
			Failed:  true,
			Err:     xslt.ErrUndefined,
		},
	}
	runTest(t, tests)
}

func TestWithoutSource(t *testing.T) {
	sheet, err := xslt.ParseString(stylesheet(`<xsl:template name="main"><out><xsl:value-of select="count(/node())"/></out></xsl:template>`))
	if err != nil {
		t.Fatalf("error loading stylesheet: %s", err)
	}
	res, err := sheet.Transform(nil, xslt.WithTemplate("main"))
	if err != nil {
		t.Fatalf("error executing transform: %s", err)
	}
	if diff := cmp.Diff("<out>0</out>", xml.WriteNode(res)); diff != "" {
		t.Errorf("result mismatched! %s", diff)
	}
}

func TestStripSpace(t *testing.T) {
	doc := "<root> <item>a</item> <item xml:space=\"preserve\"> </item> </root>"
	tests := []TestCase{
		{
			Name:  "keep",
			Sheet: `<xsl:template match="/"><out><xsl:value-of select="count(root/node())"/></out></xsl:template>`,
			Doc:   doc,
			Want:  "<out>5</out>",
		},
		{
			Name: "strip",
			Sheet: `<xsl:strip-space elements="*"/>
			<xsl:template match="/"><out><xsl:value-of select="count(root/node())"/>-<xsl:value-of select="count(root/item[2]/node())"/></out></xsl:template>`,
			Doc:  doc,
			Want: "<out>2-1</out>",
		},
		{
			Name: "preserve",
			Sheet: `<xsl:strip-space elements="*"/>
			<xsl:preserve-space elements="root"/>
			<xsl:template match="/"><out><xsl:value-of select="count(root/node())"/></out></xsl:template>`,
			Doc:  doc,
			Want: "<out>5</out>",
		},
	}
	runTest(t, tests)
}

func TestImport(t *testing.T) {
	fsys := fstest.MapFS{
		"main.xsl": &fstest.MapFile{
			Data: []byte(stylesheet(`<xsl:import href="lib/base.xsl"/>
			<xsl:include href="lib/extra.xsl"/>
			<xsl:template match="item"><b><xsl:apply-imports/></b></xsl:template>
			<xsl:template match="/"><out><xsl:apply-templates select="root/item[1]"/><xsl:call-template name="extra"/></out></xsl:template>`)),
		},
		"lib/base.xsl": &fstest.MapFile{
			Data: []byte(stylesheet(`<xsl:template match="item"><a><xsl:value-of select="@id"/></a></xsl:template>
			<xsl:template name="extra">base</xsl:template>`)),
		},
		"lib/extra.xsl": &fstest.MapFile{
			Data: []byte(stylesheet(`<xsl:template name="extra"><xsl:value-of select="document('data.xml')/data"/></xsl:template>`)),
		},
		"lib/data.xml": &fstest.MapFile{
			Data: []byte(`<data>extra</data>`),
		},
		"cycle.xsl": &fstest.MapFile{
			Data: []byte(stylesheet(`<xsl:include href="cycle.xsl"/>`)),
		},
	}
	sheet, err := xslt.LoadFS(fsys, "main.xsl")
	if err != nil {
		t.Fatalf("error loading stylesheet: %s", err)
	}
	if got := sheet.Modules(); len(got) != 3 {
		t.Errorf("modules mismatched! want 3 modules, got %d", len(got))
	}
	doc, err := xml.ParseString(items)
	if err != nil {
		t.Fatalf("error parsing document: %s", err)
	}
	res, err := sheet.Transform(doc)
	if err != nil {
		t.Fatalf("error executing transform: %s", err)
	}
	want := "<out><b><a>a</a></b>extra</out>"
	if diff := cmp.Diff(want, xml.WriteNode(res)); diff != "" {
		t.Errorf("result mismatched! %s", diff)
	}

	_, err = xslt.LoadFS(fsys, "cycle.xsl")
	if !errors.Is(err, xslt.ErrCycle) {
		t.Errorf("cycle not detected! got %v", err)
	}
}

func TestRecomposeFailure(t *testing.T) {
	fsys := fstest.MapFS{
		"main.xsl": &fstest.MapFile{
			Data: []byte(stylesheet(`<xsl:template match="/"><out/></xsl:template>`)),
		},
		"bad.xsl": &fstest.MapFile{
			Data: []byte(stylesheet(`<xsl:template name="broken"><xsl:call-template name="missing"/></xsl:template>`)),
		},
	}
	sheet, err := xslt.LoadFS(fsys, "main.xsl")
	if err != nil {
		t.Fatalf("error loading stylesheet: %s", err)
	}
	if err := sheet.Import("bad.xsl"); err != nil {
		t.Fatalf("error importing stylesheet: %s", err)
	}
	if err := sheet.Recompose(); !errors.Is(err, xslt.ErrUndefined) {
		t.Fatalf("recompose should fail, got %v", err)
	}
	if got := sheet.State(); got == xslt.Executable {
		t.Errorf("state mismatched! want not executable, got %s", got)
	}
	doc, _ := xml.ParseString(items)
	if _, err := sheet.Transform(doc); !errors.Is(err, xslt.ErrNotExecutable) {
		t.Errorf("transform should fail, got %v", err)
	}
}

func TestUnknownMode(t *testing.T) {
	sheet, err := xslt.ParseString(stylesheet(`<xsl:template match="/"><out/></xsl:template>
	<xsl:template match="item" mode="list"><li/></xsl:template>`))
	if err != nil {
		t.Fatalf("error loading stylesheet: %s", err)
	}
	doc, _ := xml.ParseString(items)

	tests := []struct {
		Mode    string
		Suggest string
	}{
		{Mode: "x", Suggest: ""},
		{Mode: "lst", Suggest: "(did you mean list?)"},
	}
	for _, c := range tests {
		_, err := sheet.Transform(doc, xslt.WithMode(c.Mode))
		if !errors.Is(err, xslt.ErrUndefined) {
			t.Errorf("%s: undefined mode expected, got %v", c.Mode, err)
			continue
		}
		msg := err.Error()
		if c.Suggest == "" && strings.Contains(msg, "did you mean") {
			t.Errorf("%s: unexpected suggestion in %q", c.Mode, msg)
		}
		if c.Suggest != "" && !strings.Contains(msg, c.Suggest) {
			t.Errorf("%s: want %q in message, got %q", c.Mode, c.Suggest, msg)
		}
	}
}

func TestMessages(t *testing.T) {
	sheet, err := xslt.ParseString(stylesheet(`<xsl:template match="/">
		<xsl:message>first <xsl:value-of select="count(//item)"/></xsl:message>
		<out><xsl:value-of select="format-number(1, '0', 'missing')"/></out>
		<xsl:message terminate="yes">stop</xsl:message>
	</xsl:template>`))
	if err != nil {
		t.Fatalf("error loading stylesheet: %s", err)
	}
	doc, _ := xml.ParseString(items)

	var list xslt.Collector
	_, err = sheet.Transform(doc, xslt.WithListener(&list))
	if !errors.Is(err, xslt.ErrTerminate) {
		t.Fatalf("transform not terminated! got %v", err)
	}
	var got []string
	for _, d := range list.Filter(xslt.Message) {
		got = append(got, d.String())
	}
	if diff := cmp.Diff([]string{"first 3", "stop"}, got); diff != "" {
		t.Errorf("messages mismatched! %s", diff)
	}
	if got := list.Filter(xslt.Warning); len(got) != 1 {
		t.Errorf("warnings mismatched! want 1, got %d", len(got))
	}
	var fatal int
	for _, d := range list.Diagnostics {
		if d.Fatal() {
			fatal++
		}
	}
	if fatal != 1 {
		t.Errorf("fatal errors mismatched! want 1, got %d", fatal)
	}
}

func TestExtension(t *testing.T) {
	sheet, err := xslt.ParseString(stylesheet(`<xsl:template match="/"><out>
		<ext:hello><xsl:fallback>fb</xsl:fallback></ext:hello>
		<xsl:value-of select="my:upper(root/item[1])"/>
		<xsl:value-of select="element-available('ext:hello')"/>
	</out></xsl:template>`))
	if err != nil {
		t.Fatalf("error loading stylesheet: %s", err)
	}
	sheet.RegisterElement("urn:ext", xslt.ElementFunc(func(ctx *xslt.Context, _ *xslt.Instruction) error {
		if ctx.Node.Type() != xml.TypeDocument {
			return errors.New("document expected")
		}
		return ctx.Handler.Characters("ext")
	}))
	sheet.RegisterFunction("urn:my", "upper", func(_ xpath.Context, args []xpath.Value) (xpath.Value, error) {
		if len(args) != 1 {
			return nil, xpath.ErrArgument
		}
		return xpath.String(strings.ToUpper(xpath.ToString(args[0]))), nil
	})
	doc, _ := xml.ParseString(items)
	res, err := sheet.Transform(doc)
	if err != nil {
		t.Fatalf("error executing transform: %s", err)
	}
	want := "<out>extONEtrue</out>"
	if diff := cmp.Diff(want, xml.WriteNode(res)); diff != "" {
		t.Errorf("result mismatched! %s", diff)
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		Name  string
		Sheet string
		Want  string
	}{
		{
			Name:  "xml",
			Sheet: `<xsl:template match="/"><out a="1">x &amp; y</out></xsl:template>`,
			Want:  `<?xml version="1.0" encoding="UTF-8"?><out a="1">x &amp; y</out>`,
		},
		{
			Name: "xml/indent",
			Sheet: `<xsl:output omit-xml-declaration="yes" indent="yes"/>
			<xsl:template match="/"><out><a/><b/></out></xsl:template>`,
			Want: "<out>\n  <a/>\n  <b/>\n</out>",
		},
		{
			Name: "text",
			Sheet: `<xsl:output method="text"/>
			<xsl:template match="/"><out><xsl:value-of select="count(//item)"/> items &amp; more</out></xsl:template>`,
			Want: "3 items & more",
		},
		{
			Name:  "html",
			Sheet: `<xsl:template match="/"><html><br/><p>a</p></html></xsl:template>`,
			Want:  "<html><br><p>a</p></html>",
		},
		{
			Name: "cdata",
			Sheet: `<xsl:output omit-xml-declaration="yes" cdata-section-elements="code"/>
			<xsl:template match="/"><code>a &lt; b</code></xsl:template>`,
			Want: "<code><![CDATA[a < b]]></code>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			sheet, err := xslt.ParseString(stylesheet(tt.Sheet))
			if err != nil {
				t.Fatalf("error loading stylesheet: %s", err)
			}
			doc, _ := xml.ParseString(items)
			var str bytes.Buffer
			if err := sheet.Generate(&str, doc); err != nil {
				t.Fatalf("error executing transform: %s", err)
			}
			if diff := cmp.Diff(tt.Want, str.String()); diff != "" {
				t.Errorf("output mismatched! %s", diff)
			}

			res, err := sheet.Transform(doc)
			if err != nil {
				t.Fatalf("error executing transform: %s", err)
			}
			str.Reset()
			if err := sheet.Serialize(&str, res); err != nil {
				t.Fatalf("error serializing result: %s", err)
			}
			if diff := cmp.Diff(tt.Want, str.String()); diff != "" {
				t.Errorf("serialized result mismatched! %s", diff)
			}
		})
	}
}

func TestTransformAll(t *testing.T) {
	sheet, err := xslt.ParseString(stylesheet(`<xsl:template match="/"><out><xsl:value-of select="count(//item)"/></out></xsl:template>`))
	if err != nil {
		t.Fatalf("error loading stylesheet: %s", err)
	}
	var docs []*xml.Document
	for _, str := range []string{items, "<root/>", "<root><item/></root>"} {
		doc, err := xml.ParseString(str)
		if err != nil {
			t.Fatalf("error parsing document: %s", err)
		}
		docs = append(docs, doc)
	}
	res, err := xslt.TransformAll(context.Background(), sheet, docs)
	if err != nil {
		t.Fatalf("error executing transforms: %s", err)
	}
	var got []string
	for _, r := range res {
		got = append(got, xml.WriteNode(r))
	}
	want := []string{"<out>3</out>", "<out>0</out>", "<out>1</out>"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatched! %s", diff)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := xslt.TransformAll(ctx, sheet, docs); !errors.Is(err, context.Canceled) {
		t.Errorf("cancellation not reported! got %v", err)
	}
}

func runTest(t *testing.T, tests []TestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.Name, executeTest(tt))
	}
}

func executeTest(tt TestCase) func(*testing.T) {
	return func(t *testing.T) {
		if tt.Doc == "" {
			tt.Doc = items
		}
		doc, err := xml.ParseString(tt.Doc)
		if err != nil {
			t.Errorf("error loading document: %s", err)
			return
		}
		sheet, err := xslt.ParseString(stylesheet(tt.Sheet))
		if err == nil {
			var res *xml.Document
			if res, err = sheet.Transform(doc, tt.Options...); err == nil && !tt.Failed {
				if diff := cmp.Diff(tt.Want, xml.WriteNode(res)); diff != "" {
					t.Errorf("result mismatched! %s", diff)
				}
				return
			}
		}
		if !tt.Failed {
			t.Errorf("error executing transform: %s", err)
			return
		}
		if err == nil {
			t.Errorf("expected error but transformation pass!")
			return
		}
		if tt.Err != nil && !errors.Is(err, tt.Err) {
			t.Errorf("error mismatched! want %v, got %v", tt.Err, err)
		}
	}
}
