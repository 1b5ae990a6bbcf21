// internal/analytics/templates/queries.go
package templates

const kpiSummaryQuery = `
WITH agg AS (
  SELECT
    DATE(snapshot_date) AS month,
    SUM(mkt_cost_daily_alloc) AS marketing_spend,
    SUM(revenue_daily) AS revenue,
    COUNT(DISTINCT application_id) AS applications,
    SUM(CASE WHEN funded_flag = 'True' THEN 1 ELSE 0 END) AS funded_loans,
    SUM(funded_amt) AS funded_amount
  FROM curated_pl_marketing_wide_synth
  WHERE snapshot_date BETWEEN :date_from AND :date_to
  {segment_filter}
  {channel_filter}
  GROUP BY DATE(snapshot_date)
)
SELECT month,
       marketing_spend,
       revenue,
       applications,
       funded_loans,
       funded_amount,
       CASE WHEN applications = 0 THEN 0 ELSE (CAST(funded_loans AS REAL) / applications) * 100 END AS funding_rate,
       CASE WHEN marketing_spend = 0 THEN 0 ELSE (CAST(revenue AS REAL) / marketing_spend) END AS roas,
       CASE WHEN funded_loans = 0 THEN 0 ELSE (CAST(marketing_spend AS REAL) / funded_loans) END AS cost_per_funded_loan
FROM agg
WHERE marketing_spend > 0 OR revenue > 0
ORDER BY month ASC`

const campaignSelect = `
SELECT campaign_name AS campaign,
       SUM(mkt_cost_daily_alloc) AS marketing_spend,
       SUM(revenue_daily) AS revenue,
       COUNT(DISTINCT application_id) AS applications,
       SUM(CASE WHEN funded_flag = 'True' THEN 1 ELSE 0 END) AS funded_loans,
       CASE WHEN SUM(mkt_cost_daily_alloc) = 0 THEN 0 ELSE (CAST(SUM(revenue_daily) AS REAL) / SUM(mkt_cost_daily_alloc)) END AS roas
FROM curated_pl_marketing_wide_synth
WHERE snapshot_date BETWEEN :date_from AND :date_to
  {segment_filter}
  {channel_filter}
  AND campaign_name IS NOT NULL
GROUP BY campaign_name
HAVING SUM(mkt_cost_daily_alloc) > 0 OR SUM(revenue_daily) > 0
ORDER BY roas DESC`

// TOP_CAMPAIGNS is capped, ALL_CAMPAIGNS is not.
const (
	topCampaignsQuery = campaignSelect + `
LIMIT 10`
	allCampaignsQuery = campaignSelect
)

const channelPerformanceQuery = `
SELECT first_touch_channel AS channel,
       SUM(mkt_cost_daily_alloc) AS marketing_spend,
       SUM(revenue_daily) AS revenue,
       COUNT(DISTINCT application_id) AS applications,
       SUM(CASE WHEN funded_flag = 'True' THEN 1 ELSE 0 END) AS funded_loans,
       CASE WHEN SUM(mkt_cost_daily_alloc) = 0 THEN 0 ELSE (CAST(SUM(revenue_daily) AS REAL) / SUM(mkt_cost_daily_alloc)) END AS roas
FROM curated_pl_marketing_wide_synth
WHERE snapshot_date BETWEEN :date_from AND :date_to
  {segment_filter}
  {channel_filter}
  AND first_touch_channel IS NOT NULL
GROUP BY first_touch_channel
HAVING SUM(mkt_cost_daily_alloc) > 0 OR SUM(revenue_daily) > 0
ORDER BY marketing_spend DESC`

const segmentAnalysisQuery = `
SELECT segment_name AS segment,
       SUM(mkt_cost_daily_alloc) AS marketing_spend,
       SUM(revenue_daily) AS revenue,
       COUNT(DISTINCT application_id) AS applications,
       SUM(CASE WHEN funded_flag = 'True' THEN 1 ELSE 0 END) AS funded_loans,
       AVG(approved_amt) AS avg_approved_amount,
       CASE WHEN SUM(mkt_cost_daily_alloc) = 0 THEN 0 ELSE (CAST(SUM(revenue_daily) AS REAL) / SUM(mkt_cost_daily_alloc)) END AS roas
FROM curated_pl_marketing_wide_synth
WHERE snapshot_date BETWEEN :date_from AND :date_to
  {segment_filter}
  {channel_filter}
  AND segment_name IS NOT NULL
GROUP BY segment_name
HAVING SUM(mkt_cost_daily_alloc) > 0 OR SUM(revenue_daily) > 0
ORDER BY marketing_spend DESC`
