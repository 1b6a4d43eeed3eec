package telegram

// User-facing reply texts. Notification bodies are rendered elsewhere; these
// cover the interactive command surface.
const (
	msgWelcome = "🔮 Welcome to the Solana wallet monitor!\n\n" +
		"The bot watches your wallets and alerts you the moment a transaction lands.\n\n" +
		"Use /help to see the available commands."

	msgHelp = "🤖 Solana wallet monitor\n\n" +
		"📋 Commands:\n" +
		"/start - register and say hello\n" +
		"/monitor - watch a new wallet\n" +
		"/add - add several wallets at once\n" +
		"/stop - stop watching a wallet\n" +
		"/list - show watched wallets and balances\n" +
		"/k - export your private keys\n" +
		"/help - show this help\n\n" +
		"⚠️ Never share your private keys with anyone else!"

	msgEnterKey = "🔑 Send the private key of the wallet you want to watch:\n\n" +
		"⚠️ Double-check the key and never share it with anyone else!"

	msgEnterBulkKeys = "📝 Send the private keys (several may share one message):\n\n" +
		"💡 Accepted:\n" +
		"• one key or many\n" +
		"• surrounding text (it is ignored)\n" +
		"• base58 or JSON array format\n\n" +
		"⚠️ Double-check the keys and never share them with anyone else!"

	msgInvalidKey = "❌ That private key does not parse. Check it and try again."

	msgWatchStarted = "✅ Now monitoring wallet: %s\n\n" +
		"🔔 Transaction alerts will flow to the monitoring channel."

	msgAlreadyWatched = "⚠️ You already watch this wallet."

	msgWatchStopped = "🛑 Stopped monitoring wallet: %s"

	msgWatchNotFound = "❌ That wallet is not on your watch list."

	msgNoWallets = "📭 You are not watching any wallets yet.\n\n" +
		"Use /monitor to start watching one."

	msgMaxWallets = "⚠️ You reached the limit of %d watched wallets.\n\n" +
		"Stop watching one first with /stop."

	msgSelectStop = "Pick the wallet to stop watching:"

	msgMonitoringActive = "🔔 Monitoring is active! You will be alerted as soon as a new transaction lands."

	msgNoKeysFound = "❌ No valid private keys found in that text.\n\n" +
		"Keys must be base58 strings or 64-byte JSON arrays."

	msgAdminOnly = "❌ This command is for the admin only."

	msgFilterShow = "🔧 Current notification floor: %s SOL\n\n" +
		"Change it with /filter <amount>, for example /filter 0.005.\n" +
		"Transactions below the floor are recorded but not announced."

	msgFilterSet = "✅ Notification floor saved: %s SOL\n\n" +
		"Smaller transactions are recorded but stay quiet.\n" +
		"🔒 The setting survives restarts."

	msgFilterUsage = "❌ That is not a number.\n\nExample: /filter 0.001"

	msgKeyExportCaption = "🔐 Your private keys file\n\n⚠️ Keep it somewhere safe!"
)
