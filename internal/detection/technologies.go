// internal/detection/technologies.go
package detection

import (
	"go.uber.org/zap"
)

// DefaultProbers returns the built-in detectors in priority order, most
// prevalent platform first, so the average URL check touches as few
// detectors as possible before the early exit fires.
func DefaultProbers(robotsSource RobotsSource, logger *zap.Logger) []TechnologyProber {
	return []TechnologyProber{
		newWordPressDetector(robotsSource, logger),
		newJoomlaDetector(robotsSource, logger),
		newDrupalDetector(robotsSource, logger),
		newDudaDetector(robotsSource, logger),
	}
}

func newWordPressDetector(robotsSource RobotsSource, logger *zap.Logger) *Detector {
	strategies := []EvidenceStrategy{
		NewGeneratorTagStrategy("WordPress"),
		&HeaderStrategy{Rules: []HeaderRule{
			{Header: "X-Powered-By", Pattern: "WordPress", Kind: MatchContains, Confidence: 0.9, ExtractVersion: true},
			{Header: "Link", Pattern: "wp-json", Kind: MatchContains, Confidence: 0.8},
			{Header: "X-Pingback", Kind: MatchAny, Confidence: 0.7},
		}},
		&MarkupSignatureStrategy{TechName: "WordPress", Signatures: []MarkupSignature{
			{Pattern: "/wp-content/", Category: "asset-path", URLShaped: true},
			{Pattern: "/wp-includes/", Category: "asset-path", URLShaped: true},
			{Pattern: "/wp-json/", Category: "api-link", URLShaped: true},
			{Pattern: "wp-emoji-release", Category: "js-global"},
			{Pattern: "wp-block-library", Category: "asset-path"},
		}},
		&RobotsStrategy{Source: robotsSource, Patterns: []RobotsPattern{
			{Category: RobotsCategoryDisallow, Pattern: "/wp-admin", Confidence: 0.8},
			{Category: RobotsCategorySitemap, Pattern: "wp-sitemap", Confidence: 0.6},
		}},
		&APIEndpointStrategy{
			TechName:     "WordPress",
			Path:         "/wp-json/",
			ExpectedKeys: []string{"name", "namespaces"},
		},
	}
	weights := map[string]float64{
		"meta-generator":   1.0,
		"http-headers":     0.9,
		"api-endpoint":     0.9,
		"robots-txt":       0.6,
		"markup-signature": 0.5,
	}
	return NewDetector(TechWordPress, strategies, weights, logger)
}

func newJoomlaDetector(robotsSource RobotsSource, logger *zap.Logger) *Detector {
	strategies := []EvidenceStrategy{
		NewGeneratorTagStrategy("Joomla"),
		&HeaderStrategy{Rules: []HeaderRule{
			{Header: "X-Content-Encoded-By", Pattern: "Joomla", Kind: MatchContains, Confidence: 0.9, ExtractVersion: true},
		}},
		&MarkupSignatureStrategy{TechName: "Joomla", Signatures: []MarkupSignature{
			{Pattern: "/administrator/", Category: "admin-path", URLShaped: true},
			{Pattern: "/media/jui/", Category: "asset-path", URLShaped: true},
			{Pattern: "/media/system/js/", Category: "asset-path", URLShaped: true},
			{Pattern: "joomla-script-options", Category: "js-global"},
			{Pattern: "com_content", Category: "component"},
		}},
		&RobotsStrategy{Source: robotsSource, Patterns: []RobotsPattern{
			{Category: RobotsCategoryDisallow, Pattern: "/administrator", Confidence: 0.8},
			{Category: RobotsCategoryText, Pattern: "joomla", Confidence: 0.5},
		}},
		&APIEndpointStrategy{
			TechName: "Joomla",
			Path:     "/administrator/manifests/files/joomla.xml",
		},
	}
	weights := map[string]float64{
		"meta-generator":   1.0,
		"http-headers":     0.9,
		"api-endpoint":     0.8,
		"robots-txt":       0.6,
		"markup-signature": 0.5,
	}
	return NewDetector(TechJoomla, strategies, weights, logger)
}

func newDrupalDetector(robotsSource RobotsSource, logger *zap.Logger) *Detector {
	strategies := []EvidenceStrategy{
		NewGeneratorTagStrategy("Drupal"),
		&HeaderStrategy{Rules: []HeaderRule{
			{Header: "X-Generator", Pattern: "Drupal", Kind: MatchContains, Confidence: 0.9, ExtractVersion: true},
			{Header: "X-Drupal-Cache", Kind: MatchAny, Confidence: 0.8},
			{Header: "X-Drupal-Dynamic-Cache", Kind: MatchAny, Confidence: 0.8},
		}},
		&MarkupSignatureStrategy{TechName: "Drupal", Signatures: []MarkupSignature{
			{Pattern: "/sites/default/files", Category: "asset-path", URLShaped: true},
			{Pattern: "/core/assets/", Category: "asset-path", URLShaped: true},
			{Pattern: "/core/misc/", Category: "asset-path", URLShaped: true},
			{Pattern: "drupal-settings-json", Category: "js-global"},
			{Pattern: "data-drupal-selector", Category: "dom-attr"},
		}},
		&RobotsStrategy{Source: robotsSource, Patterns: []RobotsPattern{
			{Category: RobotsCategoryDisallow, Pattern: "/core/", Confidence: 0.5},
			{Category: RobotsCategoryDisallow, Pattern: "/admin/", Confidence: 0.4},
			{Category: RobotsCategoryText, Pattern: "CHANGELOG.txt", Confidence: 0.3},
		}},
		&APIEndpointStrategy{
			TechName:     "Drupal",
			Path:         "/jsonapi",
			ExpectedKeys: []string{"jsonapi", "links"},
		},
	}
	weights := map[string]float64{
		"meta-generator":   1.0,
		"http-headers":     0.9,
		"api-endpoint":     0.9,
		"robots-txt":       0.6,
		"markup-signature": 0.5,
	}
	return NewDetector(TechDrupal, strategies, weights, logger)
}

func newDudaDetector(robotsSource RobotsSource, logger *zap.Logger) *Detector {
	// Duda has no stable header or API fingerprint; detection leans on
	// several independent runtime markup families, which is why this is the
	// one detector with the multi-category markup bonus enabled.
	strategies := []EvidenceStrategy{
		NewGeneratorTagStrategy("Duda"),
		&MarkupSignatureStrategy{
			TechName: "Duda",
			Signatures: []MarkupSignature{
				{Pattern: "window.Parameters", Category: "js-global"},
				{Pattern: "duda_website_builder", Category: "branding"},
				{Pattern: "dmAlbum", Category: "dm-runtime"},
				{Pattern: "dm_content", Category: "dm-runtime"},
				{Pattern: "dmBody", Category: "dm-runtime"},
				{Pattern: "/_dm-templates/", Category: "asset-path", URLShaped: true},
			},
			BoostCategories: 3,
		},
		&RobotsStrategy{Source: robotsSource, Patterns: []RobotsPattern{
			{Category: RobotsCategorySitemap, Pattern: "multiscreensite", Confidence: 0.7},
		}},
	}
	weights := map[string]float64{
		"meta-generator":   1.0,
		"markup-signature": 0.8,
		"robots-txt":       0.6,
	}
	return NewDetector(TechDuda, strategies, weights, logger)
}
